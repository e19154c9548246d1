package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api/response"
	"github.com/liliang-cn/askbook/internal/domain"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects callers over their budget with 429. Limiter errors let
// the request through.
func RateLimit(limiter RateLimiter, base *zap.Logger) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromContext(c.Request.Context(), base).Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			response.Error(c, domain.ErrRateLimited)
			return
		}
		c.Next()
	}
}

const localLimiterIdle = time.Hour

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is a token bucket per key, kept in process memory
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLocalLimiter allows requestsPerHour on average with the given burst
func NewLocalLimiter(requestsPerHour, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &LocalLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(requestsPerHour) / time.Hour.Seconds()),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		l.evictIdle(now)
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > localLimiterIdle {
			delete(l.visitors, key)
		}
	}
}

// RedisLimiter is a sliding-window limiter shared by every replica
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit requests per window per key
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix + "ratelimit:", limit: limit, window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = r.prefix + key
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(r.limit), nil
}
