package store

import (
	"context"
	"testing"
	"time"
)

func newTestClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()
	now, clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore().WithClock(clock)

	t.Run("counts within window", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, expiresIn, err := s.Incr(ctx, "k", time.Hour)
			if err != nil {
				t.Fatalf("incr: %v", err)
			}
			if count != i {
				t.Fatalf("count = %d, want %d", count, i)
			}
			if expiresIn <= 0 || expiresIn > time.Hour {
				t.Fatalf("expiresIn = %v", expiresIn)
			}
		}
	})

	t.Run("window reset", func(t *testing.T) {
		*now = now.Add(time.Hour + time.Second)
		count, _, err := s.Incr(ctx, "k", time.Hour)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != 1 {
			t.Fatalf("count after reset = %d, want 1", count)
		}
	})
}

func TestMemoryStoreGetSetExpiry(t *testing.T) {
	ctx := context.Background()
	now, clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore().WithClock(clock)

	if err := s.Set(ctx, "presence:t:u", "ts", 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, found, err := s.Get(ctx, "presence:t:u")
	if err != nil || !found || val != "ts" {
		t.Fatalf("get = (%q, %v, %v)", val, found, err)
	}

	*now = now.Add(31 * time.Second)
	_, found, err = s.Get(ctx, "presence:t:u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatalf("expected entry to expire without explicit delete")
	}
}

func TestMemoryStoreSets(t *testing.T) {
	ctx := context.Background()
	now, clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore().WithClock(clock)

	for _, member := range []string{"alice", "bob"} {
		if err := s.AddToSet(ctx, "members", member, time.Minute); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	members, err := s.SetMembers(ctx, "members")
	if err != nil || len(members) != 2 {
		t.Fatalf("members = %v, err = %v", members, err)
	}

	if err := s.RemoveFromSet(ctx, "members", "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	members, _ = s.SetMembers(ctx, "members")
	if len(members) != 1 || members[0] != "bob" {
		t.Fatalf("members after remove = %v", members)
	}

	*now = now.Add(2 * time.Minute)
	members, err = s.SetMembers(ctx, "members")
	if err != nil || members != nil {
		t.Fatalf("expected expired set, got %v (err %v)", members, err)
	}
}
