package geocode

import (
	"sync"
	"time"

	"backend-ridelink/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter tracks request rates per caller IP with expiration, keeping
// the third-party geocoder within its usage policy.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newIPRateLimiter(requests int, window time.Duration, burst int) *ipRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		visitors: map[string]*visitor{},
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		ttl:      5 * time.Minute,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if ok {
		v.lastSeen = now
	} else {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
		l.visitors[key] = v
	}
	for k, seen := range l.visitors {
		if now.Sub(seen.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
	l.mu.Unlock()

	return v.limiter.Allow()
}

// RateLimit allows `requests` per `window` per client IP on the routes it
// guards, with a small burst on top.
func RateLimit(requests int, window time.Duration, burst int) fiber.Handler {
	limiter := newIPRateLimiter(requests, window, burst)
	return func(c *fiber.Ctx) error {
		if !limiter.Allow(c.IP()) {
			return apperr.New(apperr.CodeRateLimited, "too many geocoding requests")
		}
		return c.Next()
	}
}
