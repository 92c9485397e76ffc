package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexus-rag/internal/query"
)

// QueryHandler reexpone el stream del pipeline de consulta a los
// clientes, con la gobernanza aplicada por los middlewares de la ruta.
type QueryHandler struct {
	logger   *zap.Logger
	querySvc query.Client
}

// NewQueryHandler crea una instancia de QueryHandler.
func NewQueryHandler(logger *zap.Logger, querySvc query.Client) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{logger: logger, querySvc: querySvc}
}

// StreamQuery maneja POST /query/stream. El cuerpo de la respuesta es el
// stream crudo del pipeline (texto + payload de procedencia); cada trozo
// se envía con flush para que el cliente lo vea incrementalmente.
func (h *QueryHandler) StreamQuery(c *gin.Context) {
	var req struct {
		Question  string `json:"question" binding:"required"`
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	uc, _ := GetUserContext(c)
	body, err := h.querySvc.StreamQuery(c.Request.Context(), req.Question, uc.TeamID, req.SessionID)
	if err != nil {
		h.logger.Error("stream open failed",
			zap.String("session_id", req.SessionID),
			zap.String("team_id", uc.TeamID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "query service unavailable"})
		return
	}
	defer body.Close()

	h.logger.Info("audit",
		zap.String("action", "query"),
		zap.String("resource", req.SessionID),
		zap.String("user_id", uc.UserID),
		zap.String("team_id", uc.TeamID),
	)

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")

	buf := make([]byte, 2048)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				// El cliente se fue; abandonar el stream no es un error
				// del servicio.
				h.logger.Debug("client disconnected mid-stream", zap.Error(writeErr))
				return
			}
			c.Writer.Flush()
		}
		if readErr == io.EOF {
			return
		}
		if readErr != nil {
			h.logger.Warn("upstream stream dropped",
				zap.String("session_id", req.SessionID),
				zap.Error(readErr),
			)
			return
		}
	}
}

// DeleteSession maneja DELETE /sessions/:id: descarta la memoria de
// sesión del lado servidor.
func (h *QueryHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	uc, _ := GetUserContext(c)

	if err := h.querySvc.ClearSession(c.Request.Context(), sessionID); err != nil {
		h.logger.Warn("session discard failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not discard session"})
		return
	}

	h.logger.Info("audit",
		zap.String("action", "discard_session"),
		zap.String("resource", sessionID),
		zap.String("user_id", uc.UserID),
	)
	c.Status(http.StatusNoContent)
}
