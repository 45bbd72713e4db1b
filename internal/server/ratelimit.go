package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsonwriter "github.com/dhruvspathak/Songify/internal/json"
	"github.com/dhruvspathak/Songify/internal/log"
	"golang.org/x/time/rate"
)

const msgTooManyRequests = "Too many requests, please try again later."

// RateLimiter is an in-memory per-IP token bucket. Each client may burst up
// to requests and refills at requests per window.
type RateLimiter struct {
	name     string
	limit    rate.Limit
	burst    int
	window   time.Duration
	now      func() time.Time
	clients  map[string]*clientLimit
	nextScan time.Time
	mu       sync.Mutex
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
// requests: maximum number of requests allowed per window
// window: time window duration (e.g., 1 minute)
func NewRateLimiter(name string, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		name:    name,
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientLimit),
	}
}

// Middleware returns a rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIP(r)

		if !rl.allow(clientID) {
			log.LogWarnWithFields("ratelimit", "Rate limit exceeded", map[string]any{
				"limiter": rl.name,
				"client":  clientID,
				"path":    r.URL.Path,
			})
			w.Header().Set("Retry-After", retryAfter(rl.window, rl.burst))
			jsonwriter.WriteTooManyRequests(w, msgTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow checks if a client is allowed to make a request
func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)

	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientLimit{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// evict drops clients idle for a full window, by which time their bucket has
// refilled. Runs at most once per window.
func (rl *RateLimiter) evict(now time.Time) {
	if now.Before(rl.nextScan) {
		return
	}
	rl.nextScan = now.Add(rl.window)
	for id, c := range rl.clients {
		if now.Sub(c.lastSeen) >= rl.window {
			delete(rl.clients, id)
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// retryAfter is the whole seconds until one more token is available.
func retryAfter(window time.Duration, requests int) string {
	if requests <= 0 || window <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(window.Seconds() / float64(requests))))
}

// clientIP is the remote host without port. Proxy headers are honored only
// when chi's RealIP middleware has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
