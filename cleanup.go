package authengine

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically revokes token rows past their expiry and deletes
// audit and attempt rows past retention. It is a thin consumer of the
// engine's public primitives and keeps no state of its own; run at most
// one per deployment.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to one
// hour.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is
// cancelled. Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cfg := s.engine.config.Retention

	if n, err := s.engine.RevokeExpired(ctx, cfg.SweepBatch); err != nil {
		log.Printf("authengine: expired-token sweep failed after %d rows: %v", n, err)
	}

	now := time.Now()
	if cfg.AuditRetention > 0 {
		if _, err := s.engine.PurgeAuditBefore(ctx, now.Add(-cfg.AuditRetention)); err != nil {
			log.Printf("authengine: audit retention sweep failed: %v", err)
		}
	}
	if cfg.AttemptRetention > 0 {
		if _, err := s.engine.PurgeAttemptsBefore(ctx, now.Add(-cfg.AttemptRetention)); err != nil {
			log.Printf("authengine: attempt retention sweep failed: %v", err)
		}
	}
}
