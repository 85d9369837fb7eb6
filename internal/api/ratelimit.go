package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// ipRateLimiter enforces a per-IP token bucket over /api routes (spec
// §4.7), reclaimed on an LRU basis so the bucket map does not grow
// unbounded (SPEC_FULL.md Supplemented Features).
type ipRateLimiter struct {
	disabled bool

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	order   []string
}

const maxTrackedIPs = 10_000
const requestsPerSecond = 5
const burstSize = 20

func newIPRateLimiter(disabled bool) *ipRateLimiter {
	return &ipRateLimiter{
		disabled: disabled,
		buckets:  make(map[string]*rate.Limiter),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	if l.disabled {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.buckets[ip]
	if !ok {
		limiter = rate.NewLimiter(requestsPerSecond, burstSize)
		l.buckets[ip] = limiter
		l.order = append(l.order, ip)
		if len(l.order) > maxTrackedIPs {
			oldest := l.order[0]
			l.order = l.order[1:]
			delete(l.buckets, oldest)
		}
	} else {
		// Move the IP to the most-recently-used end of order.
		for i, seen := range l.order {
			if seen == ip {
				l.order = append(append(l.order[:i], l.order[i+1:]...), ip)
				break
			}
		}
	}
	return limiter.Allow()
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
