package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// IssueRateLimiter caps submissions per client IP within window using a
// Redis counter per IP.
func IssueRateLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration, log *logrus.Entry) gin.HandlerFunc {
	log = log.WithField("component", "rate_limiter")

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// Create individual key for each client
		key := prefix + ":" + c.ClientIP()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.WithError(err).Error("redis error incrementing count")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
			return
		}

		// Set TTL only for the first increment
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				log.WithError(err).Error("redis error setting TTL")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
