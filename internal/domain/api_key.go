package domain

import "time"

// APIKey es una credencial programática ligada a un equipo y a su emisor.
// El secreto se genera una sola vez y nunca vuelve a mostrarse completo.
type APIKey struct {
	ID         string     `json:"id"`
	Secret     string     `json:"-"`
	Label      string     `json:"label"`
	TeamID     string     `json:"team_id"`
	UserID     string     `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// KeyIdentity es el resultado de validar un secreto: quién lo emitió y
// para qué equipo.
type KeyIdentity struct {
	KeyID  string `json:"key_id"`
	UserID string `json:"user_id"`
	TeamID string `json:"team_id"`
}

// APIKeySummary es la vista de listado, con el secreto censurado.
type APIKeySummary struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	TeamID        string     `json:"team_id"`
	UserID        string     `json:"user_id"`
	SecretPreview string     `json:"secret_preview"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}
