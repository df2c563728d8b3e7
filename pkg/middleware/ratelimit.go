package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
)

// RateLimitConfig configures per-client rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration // how often idle clients are evicted
	ClientExpiration  time.Duration // idle time after which a client is evicted
	MaxClients        int           // bound on tracked clients; new clients beyond it are refused
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		CleanupInterval:   5 * time.Minute,
		ClientExpiration:  10 * time.Minute,
		MaxClients:        10000,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	config  *RateLimitConfig
	logger  logging.Logger
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stop    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine. Call
// Stop to release it.
func NewRateLimiter(config *RateLimitConfig, logger logging.Logger) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger.With(logging.Component("ratelimit")),
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Allow reports whether clientID may make a request now
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	now := rl.now()
	c, ok := rl.clients[clientID]
	if !ok {
		if rl.config.MaxClients > 0 && len(rl.clients) >= rl.config.MaxClients {
			rl.mu.Unlock()
			rl.logger.Warn("max clients reached, refusing new client", logging.Int("max_clients", rl.config.MaxClients))
			return false
		}
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)}
		rl.clients[clientID] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup evicts clients idle for longer than ClientExpiration
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.config.ClientExpiration {
			delete(rl.clients, id)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("evicted idle clients", logging.Count(removed))
	}
	return removed
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// ClientIDFunc extracts a client identifier from a request
type ClientIDFunc func(*http.Request) string

// RemoteIP identifies clients by the host part of RemoteAddr
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit answers 429 once a client exceeds its budget. A nil limiter
// disables limiting.
func RateLimit(limiter *RateLimiter, clientID ClientIDFunc) Middleware {
	if clientID == nil {
		clientID = RemoteIP
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientID(r)) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(limiter.config.RequestsPerSecond, 'f', -1, 64))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after 1 second")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
