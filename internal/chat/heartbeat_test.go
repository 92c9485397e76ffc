package chat

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingPinger struct {
	mu    sync.Mutex
	teams []string
}

func (p *countingPinger) Heartbeat(_ context.Context, teamID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teams = append(p.teams, teamID)
	return nil
}

func (p *countingPinger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.teams)
}

func TestHeartbeatLoop(t *testing.T) {
	pinger := &countingPinger{}
	loop := StartHeartbeat(context.Background(), pinger, "team-a", 10*time.Millisecond, nil)

	deadline := time.Now().Add(time.Second)
	for pinger.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pinger.count() < 3 {
		t.Fatalf("beats = %d, want at least 3", pinger.count())
	}

	loop.Stop()
	after := pinger.count()
	time.Sleep(50 * time.Millisecond)
	if pinger.count() != after {
		t.Fatalf("beats continued after stop: %d -> %d", after, pinger.count())
	}
}
