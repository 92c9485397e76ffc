package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisCommander struct {
	lastScript  string
	lastKeys    []string
	lastArgs    []interface{}
	evalReply   []interface{}
	evalErr     error
	getVal      string
	getErr      error
	lastSetKey  string
	lastSetTTL  time.Duration
	saddKey     string
	saddMembers []interface{}
	sremMembers []interface{}
	expireKey   string
	members     []string
}

func (m *mockRedisCommander) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.evalErr != nil {
		cmd.SetErr(m.evalErr)
		return cmd
	}
	cmd.SetVal(m.evalReply)
	return cmd
}

func (m *mockRedisCommander) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisCommander) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	cmd.SetVal(m.getVal)
	return cmd
}

func (m *mockRedisCommander) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func (m *mockRedisCommander) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	m.saddKey = key
	m.saddMembers = members
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func (m *mockRedisCommander) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetVal(m.members)
	return cmd
}

func (m *mockRedisCommander) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	m.sremMembers = members
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(members)))
	return cmd
}

func (m *mockRedisCommander) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireKey = key
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func TestRedisStoreIncr(t *testing.T) {
	t.Run("parses count and ttl", func(t *testing.T) {
		mock := &mockRedisCommander{evalReply: []interface{}{int64(2), int64(3599)}}
		s := &RedisStore{client: mock}

		count, expiresIn, err := s.Incr(context.Background(), "ratelimit:u1", time.Hour)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != 2 {
			t.Fatalf("count = %d", count)
		}
		if expiresIn != 3599*time.Second {
			t.Fatalf("expiresIn = %v", expiresIn)
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "ratelimit:u1" {
			t.Fatalf("keys = %v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 3600 {
			t.Fatalf("args = %v", mock.lastArgs)
		}
	})

	t.Run("propagates backend error", func(t *testing.T) {
		mock := &mockRedisCommander{evalErr: errors.New("redis down")}
		s := &RedisStore{client: mock}
		if _, _, err := s.Incr(context.Background(), "k", time.Minute); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestRedisStoreGet(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		mock := &mockRedisCommander{getErr: redis.Nil}
		s := &RedisStore{client: mock}
		_, found, err := s.Get(context.Background(), "nope")
		if err != nil {
			t.Fatalf("redis.Nil must not surface as error: %v", err)
		}
		if found {
			t.Fatalf("expected not found")
		}
	})

	t.Run("present key", func(t *testing.T) {
		mock := &mockRedisCommander{getVal: "v"}
		s := &RedisStore{client: mock}
		val, found, err := s.Get(context.Background(), "k")
		if err != nil || !found || val != "v" {
			t.Fatalf("get = (%q, %v, %v)", val, found, err)
		}
	})
}

func TestRedisStoreSets(t *testing.T) {
	mock := &mockRedisCommander{members: []string{"alice"}}
	s := &RedisStore{client: mock}
	ctx := context.Background()

	if err := s.AddToSet(ctx, "presence:members:t1", "alice", time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if mock.saddKey != "presence:members:t1" || mock.expireKey != "presence:members:t1" {
		t.Fatalf("sadd=%q expire=%q", mock.saddKey, mock.expireKey)
	}

	members, err := s.SetMembers(ctx, "presence:members:t1")
	if err != nil || len(members) != 1 {
		t.Fatalf("members = %v, err = %v", members, err)
	}

	if err := s.RemoveFromSet(ctx, "presence:members:t1"); err != nil {
		t.Fatalf("empty remove must be a no-op: %v", err)
	}
	if mock.sremMembers != nil {
		t.Fatalf("srem should not be called for empty member list")
	}
}
