package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// El primer INCR de una clave fija la expiración en la misma operación,
// de modo que el primer escritor define el borde de la ventana.
const redisIncrScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`

const redisOpTimeout = 500 * time.Millisecond

// redisCommander reduce go-redis a los comandos que usamos, para poder
// mockearlo en tests.
type redisCommander interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStore implementa TTLStore sobre un Redis compartido. Es seguro bajo
// concurrencia arbitraria entre procesos.
type RedisStore struct {
	client redisCommander
}

// NewRedisStore construye el backend compartido.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	seconds := int(ttl.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	vals, err := s.client.Eval(ctx, redisIncrScript, []string{key}, seconds).Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("incr script: unexpected reply of %d values", len(vals))
	}
	count, ok := vals[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("incr script: unexpected count type %T", vals[0])
	}
	ttlSecs, ok := vals[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("incr script: unexpected ttl type %T", vals[1])
	}
	if ttlSecs < 0 {
		ttlSecs = int64(seconds)
	}
	return count, time.Duration(ttlSecs) * time.Second, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) AddToSet(ctx context.Context, key, member string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return err
	}
	// Refrescamos la expiración del índice en cada alta para que no
	// sobreviva indefinidamente a sus miembros.
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return s.client.SMembers(ctx, key).Result()
}

func (s *RedisStore) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.SRem(ctx, key, args...).Err()
}
