// Package handler exposes the gateway's admin HTTP surface: install and
// activation are driven remotely on deploys, the way a page messages its
// service worker.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/habi/habi-go/internal/cache"
	"github.com/habi/habi-go/internal/gateway"
)

// AdminHandler handles gateway lifecycle requests.
type AdminHandler struct {
	gw       *gateway.Transport
	store    cache.Store
	upstream *url.URL
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(gw *gateway.Transport, store cache.Store, upstream *url.URL) *AdminHandler {
	return &AdminHandler{gw: gw, store: store, upstream: upstream}
}

type statusResponse struct {
	Generation  string   `json:"generation"`
	State       string   `json:"state"`
	Generations []string `json:"generations"`
}

// HandleStatus handles GET /admin/status requests.
func (h *AdminHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	generations, err := h.store.Generations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("cache store unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Generation:  h.gw.Generation(),
		State:       string(h.gw.State()),
		Generations: generations,
	})
}

type precacheRequest struct {
	Paths []string `json:"paths"`
}

// HandlePrecache handles POST /admin/precache requests, seeding the
// current generation's bucket with the given upstream paths.
func (h *AdminHandler) HandlePrecache(w http.ResponseWriter, r *http.Request) {
	var req precacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if len(req.Paths) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("paths is required"))
		return
	}

	seedURLs := make([]string, 0, len(req.Paths))
	for _, path := range req.Paths {
		seedURLs = append(seedURLs, h.upstream.ResolveReference(&url.URL{Path: path}).String())
	}

	if err := h.gw.Install(r.Context(), seedURLs); err != nil {
		if errors.Is(err, gateway.ErrInstallFailed) {
			writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"seeded": len(seedURLs), "generation": h.gw.Generation()})
}

// HandleActivate handles POST /admin/activate requests, garbage-collecting
// every bucket tagged with a different generation id.
func (h *AdminHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.Activate(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("activation failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"generation": h.gw.Generation(),
		"state":      string(h.gw.State()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
