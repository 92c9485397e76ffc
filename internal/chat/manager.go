// Package chat implementa el estado de conversaciones del lado cliente:
// sesiones concurrentes, sesión activa, historial por sesión y el volcado
// del stream de respuesta sobre la sesión correspondiente.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexus-rag/internal/domain"
	"nexus-rag/internal/query"
	"nexus-rag/internal/stream"
)

var (
	ErrEmptyMessage    = errors.New("message text empty")
	ErrSendInFlight    = errors.New("another send is in flight")
	ErrSessionNotFound = errors.New("chat session not found")
)

const titleMaxRunes = 30

// Texto visible cuando el stream falla: el placeholder nunca queda vacío
// ni congelado a medias.
const sendFailureText = "Something went wrong while answering this question. Please try again."

// Store persiste la lista de sesiones localmente. Se guarda completa en
// cada mutación y se rehidrata al arrancar.
type Store interface {
	Load() ([]*domain.ChatSession, error)
	Save(sessions []*domain.ChatSession) error
}

// Manager es dueño del conjunto de sesiones de un cliente. Un único send
// puede estar en vuelo por instancia; las mutaciones locales (crear,
// seleccionar, renombrar, borrar) no tocan la red.
type Manager struct {
	mu       sync.Mutex
	sessions []*domain.ChatSession
	activeID string
	teamID   string
	inFlight bool

	client query.Client
	store  Store
	logger *zap.Logger

	// OnUpdate, si está definido, se invoca tras cada incremento del
	// stream con la sesión afectada. El callback no debe mutarla ni
	// llamar de vuelta al Manager.
	OnUpdate func(session *domain.ChatSession)
}

// NewManager rehidrata las sesiones persistidas y construye el manager.
func NewManager(client query.Client, st Store, teamID string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return &Manager{
		sessions: sessions,
		teamID:   teamID,
		client:   client,
		store:    st,
		logger:   logger,
	}, nil
}

// Send envía una pregunta contra la sesión activa (creándola si no hay
// ninguna), añade el mensaje de usuario de forma síncrona, abre el stream
// y va sobreescribiendo el placeholder assistant con cada incremento
// acumulado. Devuelve el mensaje assistant final.
func (m *Manager) Send(ctx context.Context, text string) (*domain.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, ErrSendInFlight
	}
	m.inFlight = true

	session := m.findLocked(m.activeID)
	if session == nil {
		session = &domain.ChatSession{
			ID:        uuid.NewString(),
			Title:     deriveTitle(trimmed),
			TeamID:    m.teamID,
			CreatedAt: time.Now().UTC(),
		}
		m.sessions = append(m.sessions, session)
		m.activeID = session.ID
	}

	userMsg := &domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	}
	placeholder := &domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		CreatedAt: time.Now().UTC(),
	}
	session.Messages = append(session.Messages, userMsg, placeholder)
	m.persistLocked()
	sessionID := session.ID
	placeholderID := placeholder.ID
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	body, err := m.client.StreamQuery(ctx, trimmed, m.teamID, sessionID)
	if err != nil {
		m.logger.Warn("stream open failed", zap.String("session_id", sessionID), zap.Error(err))
		m.applyContent(sessionID, placeholderID, sendFailureText, nil)
		return nil, err
	}
	defer body.Close()

	decoder := stream.NewDecoder(m.logger)
	buf := make([]byte, 2048)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if cumulative, emitted := decoder.Feed(string(buf[:n])); emitted {
				if !m.applyContent(sessionID, placeholderID, cumulative, nil) {
					// La sesión fue borrada a mitad de stream: los
					// incrementos tardíos se descartan sin error.
					return nil, ErrSessionNotFound
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			m.logger.Warn("stream read failed", zap.String("session_id", sessionID), zap.Error(readErr))
			m.applyContent(sessionID, placeholderID, sendFailureText, nil)
			return nil, readErr
		}
	}

	final, citations := decoder.Finish()
	if !m.applyContent(sessionID, placeholderID, final, citations) {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findLocked(sessionID); s != nil {
		for _, msg := range s.Messages {
			if msg.ID == placeholderID {
				copied := *msg
				return &copied, nil
			}
		}
	}
	return nil, ErrSessionNotFound
}

// NewChat crea una sesión vacía y la activa. Mutación puramente local.
func (m *Manager) NewChat() *domain.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := &domain.ChatSession{
		ID:        uuid.NewString(),
		Title:     "New chat",
		TeamID:    m.teamID,
		CreatedAt: time.Now().UTC(),
	}
	m.sessions = append(m.sessions, session)
	m.activeID = session.ID
	m.persistLocked()
	return session
}

// SelectChat cambia la sesión activa.
func (m *Manager) SelectChat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(id) == nil {
		return ErrSessionNotFound
	}
	m.activeID = id
	m.persistLocked()
	return nil
}

// RenameChat cambia el título de una sesión.
func (m *Manager) RenameChat(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyMessage
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.findLocked(id)
	if session == nil {
		return ErrSessionNotFound
	}
	session.Title = title
	m.persistLocked()
	return nil
}

// DeleteChat elimina la sesión localmente de inmediato y notifica al
// servicio de consulta para que descarte su memoria. Un fallo en la
// notificación se registra pero no revierte el borrado local.
func (m *Manager) DeleteChat(ctx context.Context, id string) error {
	m.mu.Lock()
	idx := -1
	for i, s := range m.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	if m.activeID == id {
		m.activeID = ""
	}
	m.persistLocked()
	m.mu.Unlock()

	notifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.client.ClearSession(notifyCtx, id); err != nil {
		m.logger.Warn("server-side session discard failed", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}

// Sessions devuelve una copia de la lista de sesiones.
func (m *Manager) Sessions() []*domain.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ChatSession, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Active devuelve la sesión activa, o nil si no hay ninguna.
func (m *Manager) Active() *domain.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(m.activeID)
}

// applyContent sobreescribe el contenido del mensaje si la sesión sigue
// existiendo. Devuelve false si la sesión o el mensaje ya no están.
func (m *Manager) applyContent(sessionID, messageID, content string, citations []domain.Citation) bool {
	m.mu.Lock()
	session := m.findLocked(sessionID)
	if session == nil {
		m.mu.Unlock()
		return false
	}
	var applied bool
	for _, msg := range session.Messages {
		if msg.ID == messageID {
			msg.Content = content
			if citations != nil {
				msg.Citations = citations
			}
			applied = true
			break
		}
	}
	if applied {
		m.persistLocked()
	}
	callback := m.OnUpdate
	m.mu.Unlock()

	if applied && callback != nil {
		callback(session)
	}
	return applied
}

func (m *Manager) findLocked(id string) *domain.ChatSession {
	if id == "" {
		return nil
	}
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) persistLocked() {
	if err := m.store.Save(m.sessions); err != nil {
		m.logger.Warn("session persistence failed", zap.Error(err))
	}
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxRunes {
		return text
	}
	return string(runes[:titleMaxRunes])
}
