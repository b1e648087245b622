package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// hop-by-hop headers stripped when forwarding, per RFC 9110.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy forwards inbound requests to the upstream origin through a
// gateway Transport, so every fetch the app issues passes through the
// network-first cache policy.
type Proxy struct {
	upstream *url.URL
	client   *http.Client
	logger   *slog.Logger
}

// NewProxy creates a proxy that forwards to upstream via transport.
func NewProxy(upstream *url.URL, transport http.RoundTripper, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		upstream: upstream,
		client:   &http.Client{Transport: transport},
		logger:   logger,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.upstream.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		writeProxyError(w, http.StatusBadRequest, "invalid request")
		return
	}
	copyHeader(out.Header, r.Header)

	resp, err := p.client.Do(out)
	if err != nil {
		// Only excluded-prefix and non-GET requests reach here: eligible
		// GETs are answered from cache or a synthesized 503 instead.
		p.logger.Warn("upstream fetch failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeProxyError(w, http.StatusBadGateway, "upstream unreachable")
		return
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn("copy response body failed", "path", r.URL.Path, "error", err)
	}
}

func copyHeader(dst, src http.Header) {
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func isHopHeader(key string) bool {
	for _, h := range hopHeaders {
		if http.CanonicalHeaderKey(key) == h {
			return true
		}
	}
	return false
}

func writeProxyError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
