package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"nexus-rag/internal/domain"
)

const userContextKey = "user_context"

// KeyValidator resuelve un secreto de API a su identidad.
type KeyValidator interface {
	Validate(ctx context.Context, secret string) (*domain.KeyIdentity, error)
}

// identityClaims son los hechos de identidad emitidos externamente: el
// middleware los consume de solo lectura, nunca emite tokens.
type identityClaims struct {
	UserID string                  `json:"uid"`
	Email  string                  `json:"email"`
	Teams  []domain.TeamMembership `json:"teams"`
	jwt.RegisteredClaims
}

// AuthMiddleware resuelve la identidad del request: X-API-Key
// auto-autenticante, o bearer token firmado acompañado del secreto
// interno que impide suplantar cabeceras desde fuera.
type AuthMiddleware struct {
	logger         *zap.Logger
	keys           KeyValidator
	jwtSecret      []byte
	internalSecret string
}

// NewAuthMiddleware construye el middleware de identidad.
func NewAuthMiddleware(logger *zap.Logger, keys KeyValidator, jwtSecret, internalSecret string) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		logger:         logger,
		keys:           keys,
		jwtSecret:      []byte(jwtSecret),
		internalSecret: internalSecret,
	}
}

// Handler deja en el contexto un UserContext, autenticado o anónimo.
// Las rutas que exigen identidad se protegen con RequireAuth.
func (a *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey := strings.TrimSpace(c.GetHeader("X-API-Key")); apiKey != "" {
			a.handleAPIKey(c, apiKey)
			return
		}
		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			a.handleBearer(c, header)
			return
		}
		c.Set(userContextKey, domain.UserContext{})
		c.Next()
	}
}

func (a *AuthMiddleware) handleAPIKey(c *gin.Context, apiKey string) {
	identity, err := a.keys.Validate(c.Request.Context(), apiKey)
	if err != nil {
		a.logger.Error("api key validation backend failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "authentication backend unavailable"})
		c.Abort()
		return
	}
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		c.Abort()
		return
	}
	c.Set(userContextKey, domain.UserContext{
		UserID:        identity.UserID,
		TeamID:        identity.TeamID,
		APIKeyID:      identity.KeyID,
		Authenticated: true,
	})
	c.Next()
}

func (a *AuthMiddleware) handleBearer(c *gin.Context, header string) {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		c.Abort()
		return
	}
	if a.internalSecret != "" {
		provided := c.GetHeader("X-Internal-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.internalSecret)) != 1 {
			a.logger.Warn("invalid internal secret", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid internal secret"})
			c.Abort()
			return
		}
	}

	tokenStr := strings.TrimSpace(header[len("Bearer "):])
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return
	}

	teamID := strings.TrimSpace(c.GetHeader("X-Team-Id"))
	uc := domain.UserContext{
		UserID:        claims.UserID,
		Email:         claims.Email,
		Teams:         claims.Teams,
		Authenticated: true,
	}
	switch {
	case teamID != "" && uc.MemberOf(teamID):
		uc.TeamID = teamID
	case teamID != "":
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of team"})
		c.Abort()
		return
	case len(claims.Teams) > 0:
		uc.TeamID = claims.Teams[0].TeamID
	}

	c.Set(userContextKey, uc)
	c.Next()
}

// RequireAuth corta los requests anónimos.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uc, ok := GetUserContext(c)
		if !ok || !uc.Authenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserContext obtiene la identidad resuelta desde el contexto de gin.
func GetUserContext(c *gin.Context) (domain.UserContext, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return domain.UserContext{}, false
	}
	uc, ok := val.(domain.UserContext)
	return uc, ok
}
