package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	auth *AuthMiddleware,
	rateLimit gin.HandlerFunc,
	govH *GovernanceHandler,
	queryH *QueryHandler,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.Use(auth.Handler())

	// Validación de claves: es en sí misma una operación de
	// autenticación, no exige identidad previa.
	v1.POST("/keys/validate", govH.ValidateKey)

	protected := v1.Group("")
	protected.Use(RequireAuth())

	protected.POST("/query/stream", rateLimit, queryH.StreamQuery)
	protected.DELETE("/sessions/:id", queryH.DeleteSession)

	protected.GET("/limits", govH.LimitStatus)
	protected.POST("/presence/heartbeat", govH.Heartbeat)
	protected.GET("/presence/:team", govH.ListOnline)

	protected.POST("/keys", govH.IssueKey)
	protected.GET("/keys", govH.ListKeys)
	protected.DELETE("/keys/:id", govH.RevokeKey)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
