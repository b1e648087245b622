// Package gateway implements the offline cache gateway: a network-first
// http.RoundTripper that snapshots successful page responses into a
// generation-tagged cache and falls back to it when the upstream is
// unreachable. Requests under an excluded prefix (the API namespace) are
// never cached and never answered from fallback.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/habi/habi-go/internal/cache"
)

// State tracks the generation lifecycle of the gateway.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActive     State = "active"
)

// DefaultExcludedPrefixes are the path prefixes exempt from caching and
// offline fallback. Serving stale API responses would corrupt user-visible
// state, so failures there propagate to the caller unchanged.
var DefaultExcludedPrefixes = []string{"/api/"}

var ErrInstallFailed = errors.New("precache install failed")

// Transport intercepts every outbound request with a network-first policy.
type Transport struct {
	base       http.RoundTripper
	store      cache.Store
	generation string
	excluded   []string
	logger     *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport used for live fetches.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithExcludedPrefixes overrides the path prefixes exempt from caching.
func WithExcludedPrefixes(prefixes []string) Option {
	return func(t *Transport) { t.excluded = prefixes }
}

// WithLogger sets the logger used for cache write warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// New creates a Transport writing into the bucket tagged with generation.
func New(store cache.Store, generation string, opts ...Option) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		store:      store,
		generation: generation,
		excluded:   DefaultExcludedPrefixes,
		logger:     slog.Default(),
		state:      StateNew,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Generation returns the generation id this transport writes to.
func (t *Transport) Generation() string {
	return t.generation
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Install seeds the current generation's bucket with the given essential
// resource URLs. Any seed failure aborts the install; the gateway remains
// usable in network-first mode either way.
func (t *Transport) Install(ctx context.Context, seedURLs []string) error {
	t.setState(StateInstalling)

	for _, seedURL := range seedURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, seedURL, nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInstallFailed, seedURL, err)
		}
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: fetch %s: %v", ErrInstallFailed, seedURL, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrInstallFailed, seedURL, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned status %d", ErrInstallFailed, seedURL, resp.StatusCode)
		}

		entry := cache.Entry{
			Status:   resp.StatusCode,
			Header:   resp.Header.Clone(),
			Body:     body,
			CachedAt: time.Now().UTC(),
		}
		if err := t.store.Put(ctx, t.generation, cache.Key(http.MethodGet, req.URL.String()), entry); err != nil {
			return fmt.Errorf("%w: store %s: %v", ErrInstallFailed, seedURL, err)
		}
	}

	t.setState(StateInstalled)
	return nil
}

// Activate deletes every bucket tagged with a different generation id and
// marks the gateway active. After activation, zero stale buckets remain.
func (t *Transport) Activate(ctx context.Context) error {
	t.setState(StateActivating)

	generations, err := t.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	for _, id := range generations {
		if id == t.generation {
			continue
		}
		if err := t.store.Drop(ctx, id); err != nil {
			return fmt.Errorf("drop generation %s: %w", id, err)
		}
		t.logger.Info("dropped stale cache generation", "generation", id)
	}

	t.setState(StateActive)
	return nil
}

// RoundTrip applies the network-first policy: try the live fetch, snapshot
// eligible 200 GET responses, and on network failure serve eligible GETs
// from cache or a synthesized 503. Failures on excluded or non-GET requests
// propagate unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if t.eligible(req) && resp.StatusCode == http.StatusOK {
			t.snapshot(req, resp)
		}
		return resp, nil
	}

	if !t.eligible(req) {
		return nil, err
	}

	entry, found, cacheErr := t.store.Get(req.Context(), t.generation, cache.Key(req.Method, req.URL.String()))
	if cacheErr != nil {
		t.logger.Warn("cache lookup failed", "url", req.URL.String(), "error", cacheErr)
	}
	if found {
		return cachedResponse(req, entry), nil
	}
	return unavailableResponse(req), nil
}

// eligible reports whether a request may be cached or served from fallback.
func (t *Transport) eligible(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	for _, prefix := range t.excluded {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return false
		}
	}
	return true
}

// snapshot stores a copy of the response body and restores the original
// response so the caller can still read it. Write failures are logged,
// never surfaced: the live response takes precedence.
func (t *Transport) snapshot(req *http.Request, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		t.logger.Warn("cache snapshot read failed", "url", req.URL.String(), "error", err)
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := cache.Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		CachedAt: time.Now().UTC(),
	}
	if err := t.store.Put(req.Context(), t.generation, cache.Key(req.Method, req.URL.String()), entry); err != nil {
		t.logger.Warn("cache snapshot write failed", "url", req.URL.String(), "error", err)
	}
}

func cachedResponse(req *http.Request, entry cache.Entry) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("X-Habi-Served-From", "cache")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Status, http.StatusText(entry.Status)),
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

func unavailableResponse(req *http.Request) *http.Response {
	body := []byte(`{"error":"service unavailable"}`)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("X-Habi-Served-From", "fallback")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)),
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
