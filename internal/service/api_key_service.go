package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"nexus-rag/internal/domain"
	"nexus-rag/internal/repository"
)

// SecretPrefix marca los secretos emitidos por este registro. Un secreto
// sin el prefijo se descarta antes de tocar el almacenamiento.
const SecretPrefix = "nxk_"

const secretRandomBytes = 32

var (
	// ErrKeyNotFound cubre tanto claves inexistentes como claves ajenas:
	// no se revela a un no-dueño que la clave existe.
	ErrKeyNotFound     = errors.New("api key not found")
	ErrKeyInvalidInput = errors.New("api key invalid input")
)

// APIKeyService emite, valida, lista y revoca credenciales de equipo.
type APIKeyService struct {
	repo   repository.APIKeyRepository
	logger *zap.Logger
}

// NewAPIKeyService construye el registro de claves.
func NewAPIKeyService(repo repository.APIKeyRepository, logger *zap.Logger) *APIKeyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyService{repo: repo, logger: logger}
}

// Issue genera una clave nueva y devuelve el secreto en claro una única
// vez. El secreto no es re-derivable: quien lo pierda debe emitir otra.
func (s *APIKeyService) Issue(ctx context.Context, teamID, userID, label string) (domain.APIKey, string, error) {
	teamID = strings.TrimSpace(teamID)
	userID = strings.TrimSpace(userID)
	label = strings.TrimSpace(label)
	if teamID == "" || userID == "" || label == "" {
		return domain.APIKey{}, "", ErrKeyInvalidInput
	}

	raw := make([]byte, secretRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate secret: %w", err)
	}
	secret := SecretPrefix + base64.RawURLEncoding.EncodeToString(raw)

	key := domain.APIKey{
		ID:        uuid.NewString(),
		Secret:    secret,
		Label:     label,
		TeamID:    teamID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("persist key: %w", err)
	}

	s.logger.Info("api key issued",
		zap.String("key_id", key.ID),
		zap.String("team_id", teamID),
		zap.String("user_id", userID),
	)
	return key, secret, nil
}

// Validate resuelve un secreto a su identidad (usuario, equipo) y registra
// el uso. Devuelve (nil, nil) para secretos malformados o desconocidos.
func (s *APIKeyService) Validate(ctx context.Context, secret string) (*domain.KeyIdentity, error) {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, SecretPrefix) {
		// Corto-circuito: entrada obviamente inválida, sin lookup.
		return nil, nil
	}

	key, err := s.repo.GetBySecret(ctx, secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup key: %w", err)
	}

	if err := s.repo.TouchLastUsed(ctx, key.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("api key last-used update failed", zap.String("key_id", key.ID), zap.Error(err))
	}
	return &domain.KeyIdentity{KeyID: key.ID, UserID: key.UserID, TeamID: key.TeamID}, nil
}

// Revoke elimina una clave solo si el solicitante es su dueño. Un
// no-dueño recibe ErrKeyNotFound, igual que si la clave no existiera.
func (s *APIKeyService) Revoke(ctx context.Context, keyID, requestingUser string) error {
	key, err := s.repo.GetByID(ctx, keyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup key: %w", err)
	}
	if key.UserID != requestingUser {
		return ErrKeyNotFound
	}
	if err := s.repo.Delete(ctx, keyID); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	s.logger.Info("api key revoked", zap.String("key_id", keyID), zap.String("user_id", requestingUser))
	return nil
}

// List devuelve las claves del equipo con el secreto censurado a un
// sufijo corto.
func (s *APIKeyService) List(ctx context.Context, teamID string) ([]domain.APIKeySummary, error) {
	keys, err := s.repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	summaries := make([]domain.APIKeySummary, 0, len(keys))
	for _, k := range keys {
		summaries = append(summaries, domain.APIKeySummary{
			ID:            k.ID,
			Label:         k.Label,
			TeamID:        k.TeamID,
			UserID:        k.UserID,
			SecretPreview: redactSecret(k.Secret),
			CreatedAt:     k.CreatedAt,
			LastUsedAt:    k.LastUsedAt,
		})
	}
	return summaries, nil
}

func redactSecret(secret string) string {
	const visible = 4
	if len(secret) <= visible {
		return "****"
	}
	return "..." + secret[len(secret)-visible:]
}
