package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"nexus-rag/internal/store"
)

var ErrRateLimitIdentity = errors.New("rate limit identity empty")

// Decision es el resultado de una comprobación de cuota.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RateLimiter cuenta requests por identidad en ventanas fijas sobre el
// TTLStore compartido. Ante un backend caído falla cerrado: deniega en
// lugar de permitir tráfico ilimitado.
type RateLimiter struct {
	store  store.TTLStore
	max    int
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewRateLimiter construye el limitador con techo y ventana configurados.
func NewRateLimiter(st store.TTLStore, max int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  st,
		max:    max,
		window: window,
		prefix: "ratelimit:",
		logger: logger,
	}
}

// Check incrementa el contador de la identidad y decide. El incremento y
// la expiración ocurren en una sola operación atómica del backend, nunca
// como read-modify-write separado.
func (l *RateLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Decision{Allowed: false}, ErrRateLimitIdentity
	}

	count, expiresIn, err := l.store.Incr(ctx, l.prefix+identity, l.window)
	if err != nil {
		l.logger.Warn("rate limit backend unavailable, failing closed",
			zap.String("identity", identity), zap.Error(err))
		return Decision{Allowed: false, Remaining: 0, ResetAt: time.Now().UTC().Add(l.window)}, err
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.max),
		Remaining: remaining,
		ResetAt:   time.Now().UTC().Add(expiresIn),
	}, nil
}

// Limit devuelve el techo configurado por ventana.
func (l *RateLimiter) Limit() int {
	return l.max
}
