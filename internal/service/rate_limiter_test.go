package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexus-rag/internal/store"
)

type failingStore struct {
	store.TTLStore
}

func (f *failingStore) Incr(_ context.Context, _ string, _ time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("backend down")
}

func TestRateLimiterCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mem := store.NewMemoryStore().WithClock(clock)

	limiter := NewRateLimiter(mem, 3, time.Hour, nil)

	t.Run("allows up to ceiling with decreasing remaining", func(t *testing.T) {
		for i, wantRemaining := range []int{2, 1, 0} {
			d, err := limiter.Check(ctx, "user-1")
			if err != nil {
				t.Fatalf("check %d: %v", i, err)
			}
			if !d.Allowed {
				t.Fatalf("check %d: expected allowed", i)
			}
			if d.Remaining != wantRemaining {
				t.Fatalf("check %d: remaining = %d, want %d", i, d.Remaining, wantRemaining)
			}
		}
	})

	t.Run("denies past the ceiling", func(t *testing.T) {
		d, err := limiter.Check(ctx, "user-1")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if d.Allowed || d.Remaining != 0 {
			t.Fatalf("decision = %+v", d)
		}
	})

	t.Run("window reset restores quota", func(t *testing.T) {
		now = now.Add(time.Hour + time.Minute)
		d, err := limiter.Check(ctx, "user-1")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !d.Allowed || d.Remaining != 2 {
			t.Fatalf("decision after reset = %+v", d)
		}
	})

	t.Run("identities do not share windows", func(t *testing.T) {
		d, err := limiter.Check(ctx, "user-2")
		if err != nil || !d.Allowed || d.Remaining != 2 {
			t.Fatalf("decision = %+v, err = %v", d, err)
		}
	})

	t.Run("empty identity rejected", func(t *testing.T) {
		if _, err := limiter.Check(ctx, "   "); !errors.Is(err, ErrRateLimitIdentity) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRateLimiterFailsClosed(t *testing.T) {
	limiter := NewRateLimiter(&failingStore{}, 3, time.Hour, nil)
	d, err := limiter.Check(context.Background(), "user-1")
	if err == nil {
		t.Fatalf("expected backend error to surface")
	}
	if d.Allowed {
		t.Fatalf("backend failure must deny, not allow")
	}
}
