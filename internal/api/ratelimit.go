package api

import (
	"fleet-routing-service/internal/platform/obs"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// RateLimiter allows a fixed number of requests per client IP per window.
// Counters live in an expiring cache, so idle clients are forgotten on their own.
// Forwarding headers are honoured only when the peer is a trusted proxy.
type RateLimiter struct {
	counts  *gocache.Cache
	rate    int
	window  time.Duration
	trusted []netip.Prefix
}

// NewRateLimiter returns nil when rate <= 0, which disables limiting.
func NewRateLimiter(rate int, window time.Duration, trustedProxies []netip.Prefix) *RateLimiter {
	if rate <= 0 {
		return nil
	}
	return &RateLimiter{
		counts:  gocache.New(window, 2*window),
		rate:    rate,
		window:  window,
		trusted: trustedProxies,
	}
}

// Allow records one request from ip and reports whether it fits the budget.
func (rl *RateLimiter) Allow(ip string) bool {
	for {
		if err := rl.counts.Add(ip, 1, rl.window); err == nil {
			return true
		}

		n, err := rl.counts.IncrementInt(ip, 1)
		if err != nil {
			// Expired between Add and Increment; start a new window.
			continue
		}
		return n <= rl.rate
	}
}

// Middleware applies the limit to next. A nil limiter passes everything through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.clientIP(r)
		if !rl.Allow(ip) {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				"req_id", obs.RequestID(r.Context()), "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the peer address, or the nearest untrusted hop of
// X-Forwarded-For (X-Real-IP as a fallback) when the peer is a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !rl.isTrusted(peer) {
		return peer
	}

	// X-Forwarded-For from a reverse proxy: "client, proxy1, proxy2".
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if host, _, err := net.SplitHostPort(hop); err == nil {
				hop = host
			}
			if hop != "" && (!rl.isTrusted(hop) || i == 0) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (rl *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range rl.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
