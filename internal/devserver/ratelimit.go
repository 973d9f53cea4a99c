package devserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raglet/raglet/internal/log"
)

// throttle holds one token bucket per caller IP. Chat traffic is a
// human typing, so the refill rate is low and the burst absorbs a
// login followed by a directory load and a couple of sends.
type throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	refill rate.Limit
	burst  int

	// Idle buckets older than staleAfter are dropped during a sweep;
	// sweeps run inline, at most once per sweepEvery.
	sweepEvery time.Duration
	staleAfter time.Duration
	lastSweep  time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newThrottle(perSecond float64, burst int) *throttle {
	return &throttle{
		buckets:    make(map[string]*bucket),
		refill:     rate.Limit(perSecond),
		burst:      burst,
		sweepEvery: 5 * time.Minute,
		staleAfter: 10 * time.Minute,
		lastSweep:  time.Now(),
	}
}

// permit reports whether the caller may proceed, consuming a token.
func (t *throttle) permit(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.sweep(now)

	b, ok := t.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.refill, t.burst), seen: now}
		t.buckets[ip] = b
	}
	b.seen = now
	return b.lim.Allow()
}

// sweep drops buckets idle past staleAfter. Caller holds the lock.
func (t *throttle) sweep(now time.Time) {
	if now.Sub(t.lastSweep) <= t.sweepEvery {
		return
	}
	for ip, b := range t.buckets {
		if now.Sub(b.seen) > t.staleAfter {
			delete(t.buckets, ip)
		}
	}
	t.lastSweep = now
}

// throttleMiddleware rejects callers whose bucket is empty with 429
// and a Retry-After hint.
func throttleMiddleware(t *throttle, trustProxy bool, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !t.permit(ip) {
				logger.Warn("request throttled",
					"client", ip,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestIDFromContext(r.Context()),
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the caller's IP for bucket keying.
//
// When trustProxy is true, X-Real-IP is consulted first, then the
// first entry of X-Forwarded-For; values must parse as IPs so header
// garbage cannot mint fresh buckets. Otherwise only RemoteAddr counts.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
