// Package store ofrece un adaptador uniforme sobre un almacén clave/valor
// con expiración: Redis compartido entre instancias, o un mapa en proceso
// como fallback. Ambos backends se comportan igual para el llamador.
package store

import (
	"context"
	"time"
)

// TTLStore es el contrato común de los backends de gobernanza.
//
// Incr es atómico: el primer escritor de una clave fija su expiración y
// ningún par de llamadores concurrentes puede observar el mismo conteo.
// Devuelve el conteo posterior al incremento y el tiempo restante de la
// ventana.
type TTLStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (count int64, expiresIn time.Duration, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error

	// Conjuntos con expiración, usados como índice de pertenencia por
	// equipo: un backend sin primitiva de scan por prefijo necesita este
	// índice explícito para poder enumerar.
	AddToSet(ctx context.Context, key, member string, ttl time.Duration) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	RemoveFromSet(ctx context.Context, key string, members ...string) error
}
