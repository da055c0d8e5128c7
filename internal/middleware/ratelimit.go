package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/geo-checkin-api/pkg/errors"
	"github.com/noah-isme/geo-checkin-api/pkg/response"
)

const rateLimitWindow = time.Minute

// RateLimit caps requests per caller in fixed one-minute windows counted in
// Redis. Callers are keyed by user id when authenticated, else by IP. A nil
// client, a non-positive limit or a Redis error lets the request through.
func RateLimit(rdb *redis.Client, scope string, perMinute int, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if rdb == nil || perMinute <= 0 {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if claims := CurrentClaims(c); claims != nil {
			caller = claims.UserID
		}

		now := time.Now()
		window := now.Truncate(rateLimitWindow)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, caller, window.Unix())

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, rateLimitWindow+time.Second)
		}

		remaining := int64(perMinute) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(perMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(perMinute) {
			retryAfter := int(window.Add(rateLimitWindow).Sub(now).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, fmt.Sprintf("too many %s requests, try again shortly", scope)))
			c.Abort()
			return
		}

		c.Next()
	}
}
