package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/observability"
)

const (
	defaultLoginMaxHits = 10
	defaultLoginWindow  = time.Minute
)

// HitCounter records one attempt for key and reports whether it is within
// the limit, and if not, how long the caller should wait.
type HitCounter interface {
	Hit(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}

func limitDefaults(maxHits int, window time.Duration) (int, time.Duration) {
	if maxHits <= 0 {
		maxHits = defaultLoginMaxHits
	}
	if window <= 0 {
		window = defaultLoginWindow
	}
	return maxHits, window
}

// MemoryCounter is a per-process sliding window.
type MemoryCounter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitByKey  map[string][]time.Time
	maxMemory int
}

func NewMemoryCounter(maxHits int, window time.Duration) *MemoryCounter {
	maxHits, window = limitDefaults(maxHits, window)
	return &MemoryCounter{
		maxHits:   maxHits,
		window:    window,
		hitByKey:  make(map[string][]time.Time),
		maxMemory: 5000,
	}
}

func (c *MemoryCounter) Hit(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	threshold := now.Add(-c.window)

	c.mu.Lock()
	defer c.mu.Unlock()

	hits := c.hitByKey[key]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= c.maxHits {
		c.hitByKey[key] = filtered
		return false, atLeastOneSecond(filtered[0].Add(c.window).Sub(now)), nil
	}

	c.hitByKey[key] = append(filtered, now)

	if len(c.hitByKey) > c.maxMemory {
		for k, value := range c.hitByKey {
			if len(value) == 0 || value[len(value)-1].Before(threshold) {
				delete(c.hitByKey, k)
			}
		}
	}

	return true, 0, nil
}

// RedisCounter is a fixed window shared by every instance.
type RedisCounter struct {
	client  redis.Cmdable
	prefix  string
	maxHits int
	window  time.Duration
}

func NewRedisCounter(client redis.Cmdable, maxHits int, window time.Duration) *RedisCounter {
	maxHits, window = limitDefaults(maxHits, window)
	return &RedisCounter{client: client, prefix: "login_rate", maxHits: maxHits, window: window}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", c.prefix, key)

	count, err := c.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr login counter: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, redisKey, c.window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire login counter: %w", err)
		}
	}
	if count <= int64(c.maxHits) {
		return true, 0, nil
	}

	ttl, err := c.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = c.window
	}
	return false, atLeastOneSecond(ttl), nil
}

func atLeastOneSecond(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}

// LoginRateLimiter throttles login attempts per client IP. Counter failures
// let the request through.
type LoginRateLimiter struct {
	counter    HitCounter
	dispatcher *httpapi.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewLoginRateLimiter(counter HitCounter, dispatcher *httpapi.Dispatcher, logger *zap.Logger) *LoginRateLimiter {
	return &LoginRateLimiter{
		counter:    counter,
		dispatcher: dispatcher,
		logger:     logger.Named("login_rate_limit"),
		now:        time.Now,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)

		allowed, retryAfter, err := l.counter.Hit(r.Context(), ip, l.now().UTC())
		if err != nil {
			l.logger.Warn("rate_limit_unavailable", zap.String("ip", ip), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			l.dispatcher.WriteError(w, r, apperror.TooManyRequests("too many login attempts"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
