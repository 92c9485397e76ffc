package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"nexus-rag/internal/domain"
)

// APIKeyRepository define el contrato de persistencia para claves de API.
// Las claves son la única entidad del subsistema con almacenamiento
// relacional duradero.
type APIKeyRepository interface {
	Create(ctx context.Context, key domain.APIKey) error
	GetByID(ctx context.Context, id string) (domain.APIKey, error)
	GetBySecret(ctx context.Context, secret string) (domain.APIKey, error)
	ListByTeam(ctx context.Context, teamID string) ([]domain.APIKey, error)
	Delete(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// PgAPIKeyRepository implementa APIKeyRepository usando pgxpool.
type PgAPIKeyRepository struct {
	pool *pgxpool.Pool
}

func NewPgAPIKeyRepository(pool *pgxpool.Pool) *PgAPIKeyRepository {
	return &PgAPIKeyRepository{pool: pool}
}

func (r *PgAPIKeyRepository) Create(ctx context.Context, key domain.APIKey) error {
	const query = `
		INSERT INTO api_keys (id, secret, label, team_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.Secret,
		key.Label,
		key.TeamID,
		key.UserID,
		key.CreatedAt,
	)
	return err
}

func (r *PgAPIKeyRepository) GetByID(ctx context.Context, id string) (domain.APIKey, error) {
	const query = `
		SELECT id, secret, label, team_id, user_id, created_at, last_used_at
		FROM api_keys
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgAPIKeyRepository) GetBySecret(ctx context.Context, secret string) (domain.APIKey, error) {
	const query = `
		SELECT id, secret, label, team_id, user_id, created_at, last_used_at
		FROM api_keys
		WHERE secret = $1
	`
	return r.scanOne(ctx, query, secret)
}

func (r *PgAPIKeyRepository) ListByTeam(ctx context.Context, teamID string) ([]domain.APIKey, error) {
	const query = `
		SELECT id, secret, label, team_id, user_id, created_at, last_used_at
		FROM api_keys
		WHERE team_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(
			&key.ID,
			&key.Secret,
			&key.Label,
			&key.TeamID,
			&key.UserID,
			&key.CreatedAt,
			&key.LastUsedAt,
		); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *PgAPIKeyRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM api_keys WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *PgAPIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgAPIKeyRepository) scanOne(ctx context.Context, query string, arg any) (domain.APIKey, error) {
	var key domain.APIKey
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&key.ID,
		&key.Secret,
		&key.Label,
		&key.TeamID,
		&key.UserID,
		&key.CreatedAt,
		&key.LastUsedAt,
	)
	if err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}
