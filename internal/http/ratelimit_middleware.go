package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexus-rag/internal/service"
)

// RateLimitMiddleware aplica la cuota por identidad a la ruta que lo
// monte. Backend de cuota caído = denegar (fail closed), nunca tráfico
// ilimitado en silencio.
func RateLimitMiddleware(limiter *service.RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		uc, _ := GetUserContext(c)
		identity := uc.UserID
		if identity == "" {
			identity = c.ClientIP()
		}

		decision, err := limiter.Check(c.Request.Context(), identity)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if err != nil {
			logger.Error("rate limit check failed", zap.String("identity", identity), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit backend unavailable"})
			c.Abort()
			return
		}
		if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"reset_at": decision.ResetAt,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
