package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexus-rag/internal/store"
)

var ErrPresenceInput = errors.New("presence team and user required")

// PresenceTracker registra "visto por última vez" por (equipo, usuario).
// No existe señal explícita de desconexión: una entrada sin heartbeat
// fresco simplemente expira. Ante backend caído falla abierto: devuelve
// el error para que el llamador reporte "desconocido", nunca una lista
// vacía que parezca "todos offline".
type PresenceTracker struct {
	store     store.TTLStore
	freshness time.Duration
	logger    *zap.Logger
}

// NewPresenceTracker construye el tracker con la ventana de frescura dada.
func NewPresenceTracker(st store.TTLStore, freshness time.Duration, logger *zap.Logger) *PresenceTracker {
	if freshness <= 0 {
		freshness = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceTracker{store: st, freshness: freshness, logger: logger}
}

func presenceKey(teamID, userID string) string {
	return "presence:" + teamID + ":" + userID
}

func presenceMembersKey(teamID string) string {
	return "presence:members:" + teamID
}

// Heartbeat reescribe incondicionalmente la entrada del usuario con una
// expiración fresca y lo mantiene en el índice de miembros del equipo.
// El índice existe porque el backend no enumera por prefijo.
func (t *PresenceTracker) Heartbeat(ctx context.Context, teamID, userID string) error {
	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)
	if teamID == "" || userID == "" {
		return ErrPresenceInput
	}

	now := time.Now().UTC()
	if err := t.store.Set(ctx, presenceKey(teamID, userID), now.Format(time.RFC3339), t.freshness); err != nil {
		return err
	}
	// El índice vive más que sus miembros para no perder el conjunto
	// entre heartbeats; los miembros caducos se podan al listar.
	return t.store.AddToSet(ctx, presenceMembersKey(teamID), userID, 4*t.freshness)
}

// ListOnline devuelve los usuarios del equipo con heartbeat dentro de la
// ventana de frescura. Los miembros caducos se eliminan del índice de
// forma perezosa.
func (t *PresenceTracker) ListOnline(ctx context.Context, teamID string) ([]string, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, ErrPresenceInput
	}

	members, err := t.store.SetMembers(ctx, presenceMembersKey(teamID))
	if err != nil {
		return nil, err
	}

	online := make([]string, 0, len(members))
	var stale []string
	for _, userID := range members {
		_, found, err := t.store.Get(ctx, presenceKey(teamID, userID))
		if err != nil {
			return nil, err
		}
		if found {
			online = append(online, userID)
		} else {
			stale = append(stale, userID)
		}
	}

	if len(stale) > 0 {
		if err := t.store.RemoveFromSet(ctx, presenceMembersKey(teamID), stale...); err != nil {
			t.logger.Warn("presence index prune failed", zap.String("team", teamID), zap.Error(err))
		}
	}

	sort.Strings(online)
	return online, nil
}
