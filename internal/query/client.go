// Package query encapsula al colaborador externo que produce el stream
// de respuesta y guarda la memoria de sesión del lado servidor.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Client define las operaciones consumidas del servicio de consulta.
type Client interface {
	// StreamQuery abre el stream de respuesta para (pregunta, equipo,
	// sesión). El llamador es dueño del reader y debe cerrarlo.
	StreamQuery(ctx context.Context, question, teamID, sessionID string) (io.ReadCloser, error)
	// ClearSession descarta la memoria de sesión del lado servidor.
	ClearSession(ctx context.Context, sessionID string) error
}

// HTTPClient implementa Client contra una API HTTP. El mismo cliente
// sirve para hablar con el pipeline de consulta o con la propia API del
// servicio (caso del cliente de chat), cambiando baseURL y credencial.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente apuntando a baseURL. apiKey puede
// ser vacío si el destino no exige credencial.
func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Sin timeout global: el stream puede durar más que cualquier
		// tope razonable de request; el contexto manda.
		client: &http.Client{},
		logger: logger,
	}
}

type streamRequest struct {
	Question  string `json:"question"`
	TeamID    string `json:"team_id"`
	SessionID string `json:"session_id"`
}

func (c *HTTPClient) StreamQuery(ctx context.Context, question, teamID, sessionID string) (io.ReadCloser, error) {
	bodyBytes, err := json.Marshal(streamRequest{Question: question, TeamID: teamID, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query/stream", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("stream query rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("query service status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *HTTPClient) ClearSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("query service status %d", resp.StatusCode)
	}
	return nil
}

// Heartbeat reporta presencia del usuario autenticado en un equipo.
func (c *HTTPClient) Heartbeat(ctx context.Context, teamID string) error {
	bodyBytes, err := json.Marshal(map[string]string{"team_id": teamID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/presence/heartbeat", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("query service status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
