package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"omega/internal/models"
	"strings"
)

// MiddlewareOption configures Middleware
type MiddlewareOption func(*ProxyTrust)

// WithProxyTrust keys requests by the client named in forwarding headers
// when they arrive from a trusted peer.
func WithProxyTrust(trust *ProxyTrust) MiddlewareOption {
	return func(p *ProxyTrust) {
		if trust != nil {
			*p = *trust
		}
	}
}

// Middleware returns HTTP middleware that enforces limiter per client IP.
// Rejected requests receive 429 with a JSON error body and Retry-After.
func Middleware(limiter Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	trust := &ProxyTrust{}
	for _, opt := range opts {
		opt(trust)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := trust.ClientIP(r)

			allowed, info := limiter.Allow(key)

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))

			if !allowed {
				retryAfterSecs := int(info.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Too many requests", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"client", key,
					"limit", info.Limit,
					"retry_after", retryAfterSecs,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ProxyTrust decides whether X-Forwarded-For and X-Real-IP name the
// client. The zero value ignores both headers.
type ProxyTrust struct {
	enabled bool
	proxies []netip.Prefix
}

// NewProxyTrust honours forwarding headers from peers inside proxies. An
// empty list trusts every peer.
func NewProxyTrust(proxies []netip.Prefix) *ProxyTrust {
	return &ProxyTrust{enabled: true, proxies: proxies}
}

// ProxyTrustFromConfig builds the proxy trust described by cfg.
func ProxyTrustFromConfig(cfg models.RateLimitConfig) (*ProxyTrust, error) {
	if !cfg.TrustProxyHeaders {
		return &ProxyTrust{}, nil
	}
	prefixes, err := cfg.ProxyPrefixes()
	if err != nil {
		return nil, err
	}
	return NewProxyTrust(prefixes), nil
}

// ClientIP returns the key for r: the forwarded client when the peer is
// trusted, the connection address otherwise.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	peer := RemoteIP(r)
	if !p.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if first := strings.TrimSpace(ips[0]); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (p *ProxyTrust) trusts(peer string) bool {
	if !p.enabled {
		return false
	}
	if len(p.proxies) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RemoteIP returns the host part of the connection address.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
