package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pinger reporta presencia contra el servicio para un equipo.
type Pinger interface {
	Heartbeat(ctx context.Context, teamID string) error
}

// HeartbeatLoop reenvía heartbeats a intervalo fijo mientras el usuario
// tiene un equipo seleccionado. Debe detenerse (Stop) antes de cambiar
// de equipo para que no queden latidos contra un equipo viejo.
type HeartbeatLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartHeartbeat lanza el bucle y emite un primer latido inmediato.
func StartHeartbeat(ctx context.Context, pinger Pinger, teamID string, interval time.Duration, logger *zap.Logger) *HeartbeatLoop {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	loop := &HeartbeatLoop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(loop.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		beat := func() {
			beatCtx, beatCancel := context.WithTimeout(ctx, 5*time.Second)
			defer beatCancel()
			if err := pinger.Heartbeat(beatCtx, teamID); err != nil {
				logger.Warn("heartbeat failed", zap.String("team_id", teamID), zap.Error(err))
			}
		}

		beat()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()

	return loop
}

// Stop cancela el bucle y espera a que termine.
func (l *HeartbeatLoop) Stop() {
	l.cancel()
	<-l.done
}
