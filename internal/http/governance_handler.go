package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexus-rag/internal/service"
)

// GovernanceHandler mantiene dependencias para endpoints de cuota,
// presencia y claves de API.
type GovernanceHandler struct {
	logger   *zap.Logger
	limiter  *service.RateLimiter
	presence *service.PresenceTracker
	keys     *service.APIKeyService
}

// NewGovernanceHandler crea una instancia con dependencias necesarias.
func NewGovernanceHandler(
	logger *zap.Logger,
	limiter *service.RateLimiter,
	presence *service.PresenceTracker,
	keys *service.APIKeyService,
) *GovernanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GovernanceHandler{
		logger:   logger,
		limiter:  limiter,
		presence: presence,
		keys:     keys,
	}
}

// LimitStatus maneja GET /limits. La consulta cuenta como un request de
// la ventana: el incremento y la lectura son una sola operación atómica.
func (h *GovernanceHandler) LimitStatus(c *gin.Context) {
	uc, _ := GetUserContext(c)
	decision, err := h.limiter.Check(c.Request.Context(), uc.UserID)
	if err != nil {
		h.logger.Error("limit status failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit backend unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": h.limiter.Limit(), "decision": decision})
}

// Heartbeat maneja POST /presence/heartbeat.
func (h *GovernanceHandler) Heartbeat(c *gin.Context) {
	// El cuerpo es opcional: sin team_id se usa el equipo del contexto.
	var req struct {
		TeamID string `json:"team_id"`
	}
	_ = c.ShouldBindJSON(&req)

	uc, _ := GetUserContext(c)
	teamID := strings.TrimSpace(req.TeamID)
	if teamID == "" {
		teamID = uc.TeamID
	}
	if teamID != "" && teamID != uc.TeamID && !uc.MemberOf(teamID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
		return
	}

	if err := h.presence.Heartbeat(c.Request.Context(), teamID, uc.UserID); err != nil {
		if errors.Is(err, service.ErrPresenceInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "team required"})
			return
		}
		h.logger.Warn("heartbeat write failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence backend unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOnline maneja GET /presence/:team. Ante backend caído responde
// "unknown", nunca una lista vacía que se lea como "todos offline".
func (h *GovernanceHandler) ListOnline(c *gin.Context) {
	teamID := c.Param("team")
	uc, _ := GetUserContext(c)
	if !uc.MemberOf(teamID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
		return
	}

	online, err := h.presence.ListOnline(c.Request.Context(), teamID)
	if err != nil {
		h.logger.Warn("presence list failed", zap.String("team", teamID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unknown", "online": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"team_id": teamID, "online": online})
}

// IssueKey maneja POST /keys. El secreto en claro aparece solo en esta
// respuesta.
func (h *GovernanceHandler) IssueKey(c *gin.Context) {
	var req struct {
		Label string `json:"label" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	uc, _ := GetUserContext(c)
	key, secret, err := h.keys.Issue(c.Request.Context(), uc.TeamID, uc.UserID, req.Label)
	if err != nil {
		if errors.Is(err, service.ErrKeyInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("issue key failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue key"})
		return
	}

	h.logger.Info("audit",
		zap.String("action", "issue_key"),
		zap.String("resource", key.ID),
		zap.String("user_id", uc.UserID),
		zap.String("team_id", uc.TeamID),
	)
	c.JSON(http.StatusCreated, gin.H{"key": key, "secret": secret})
}

// ValidateKey maneja POST /keys/validate, para servicios internos.
func (h *GovernanceHandler) ValidateKey(c *gin.Context) {
	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identity, err := h.keys.Validate(c.Request.Context(), req.Secret)
	if err != nil {
		h.logger.Error("validate key failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "key backend unavailable"})
		return
	}
	if identity == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

// RevokeKey maneja DELETE /keys/:id. Clave ajena y clave inexistente
// responden igual para no revelar existencia.
func (h *GovernanceHandler) RevokeKey(c *gin.Context) {
	uc, _ := GetUserContext(c)
	keyID := c.Param("id")

	if err := h.keys.Revoke(c.Request.Context(), keyID, uc.UserID); err != nil {
		if errors.Is(err, service.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		h.logger.Error("revoke key failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not revoke key"})
		return
	}

	h.logger.Info("audit",
		zap.String("action", "revoke_key"),
		zap.String("resource", keyID),
		zap.String("user_id", uc.UserID),
	)
	c.Status(http.StatusNoContent)
}

// ListKeys maneja GET /keys, con los secretos censurados.
func (h *GovernanceHandler) ListKeys(c *gin.Context) {
	uc, _ := GetUserContext(c)
	keys, err := h.keys.List(c.Request.Context(), uc.TeamID)
	if err != nil {
		h.logger.Error("list keys failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}
