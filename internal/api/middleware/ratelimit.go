package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// PathValueKey buckets requests by a route wildcard such as {id}.
func PathValueKey(name string) KeyFunc {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}

// RateLimiter keeps one token bucket per key. Idle buckets expire.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	key     KeyFunc
	log     zerolog.Logger
	mu      sync.Mutex
	buckets *cache.Cache
}

// NewRateLimiter allows perSecond requests per key with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int, key KeyFunc, log zerolog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		key:     key,
		log:     log,
		buckets: cache.New(30*time.Minute, 10*time.Minute),
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.SetDefault(key, lim)
	return lim
}

// Wrap rejects requests over the limit with 429 and a Retry-After header.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.key(r)
		lim := l.limiter(key)

		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			l.log.Warn().
				Str("key", key).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Rate limit exceeded")
			WriteError(w, http.StatusTooManyRequests, "Too many analysis requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
