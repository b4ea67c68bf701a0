package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chopshop-gg/platform/pkg/logger"
)

// openPaths are reachable without a bearer token.
var openPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// wrapWithAuth enforces bearer-token auth on every route except the open
// ones. An empty token list disables auth entirely.
func wrapWithAuth(next http.Handler, tokens []string, audits *auditLog) http.Handler {
	allowed := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token != "" {
			allowed[token] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(allowed) == 0 || openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !allowed[strings.TrimSpace(token)] {
			if audits != nil {
				audits.add(AuditEntry{
					Time:       time.Now().UTC(),
					Path:       r.URL.Path,
					Method:     r.Method,
					Status:     http.StatusUnauthorized,
					RemoteAddr: r.RemoteAddr,
				})
			}
			writeError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// WrapWithAuth is the exported form used by the server entrypoint.
func WrapWithAuth(next http.Handler, tokens []string, audits *AuditLog) http.Handler {
	var log *auditLog
	if audits != nil {
		log = audits.inner
	}
	return wrapWithAuth(next, tokens, log)
}

// RateLimiter throttles requests per remote address on selected paths.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	paths    map[string]bool
	log      *logger.Logger
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given
// burst on the listed paths. Empty paths means every route is limited.
func NewRateLimiter(requestsPerSecond, burst int, paths []string, log *logger.Logger) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = requestsPerSecond
	}
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	limited := make(map[string]bool, len(paths))
	for _, p := range paths {
		limited[p] = true
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		paths:    limited,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler returns the rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(rl.paths) > 0 && !rl.paths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := r.RemoteAddr
		if host, _, ok := strings.Cut(key, ":"); ok {
			key = host
		}

		if !rl.limiter(key).Allow() {
			rl.log.WithField("remote", key).
				WithField("path", r.URL.Path).
				Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}
