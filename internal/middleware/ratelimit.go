package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taubermatt/platform/internal/requestinfo"
)

// idleTTL is how long a client's limiter survives without traffic.
const idleTTL = 10 * time.Minute

// RateLimiter throttles each client IP with its own token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter allows rps requests per second per IP with the given
// burst.  rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	now := rl.now()
	rl.sweep(now)
	c, ok := rl.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.seen = now
	rl.mu.Unlock()

	return c.lim.AllowN(now, 1)
}

// sweep drops idle clients at most once per idleTTL.  Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleTTL {
		return
	}
	for k, c := range rl.clients {
		if now.Sub(c.seen) > idleTTL {
			delete(rl.clients, k)
		}
	}
	rl.lastSweep = now
}

// Limit answers 429 with Retry-After once a client exceeds its budget.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	retry := "1"
	if rl.limit > 0 {
		retry = strconv.Itoa(int(math.Ceil(1 / float64(rl.limit))))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "unknown"
		if ip := requestinfo.ClientIP(r); ip != nil {
			key = ip.String()
		}
		if !rl.Allow(key) {
			w.Header().Set("Retry-After", retry)
			http.Error(w, "Too many requests. Please try again shortly.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
