// Package poller drives the fixed-interval refresh loop.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval matches the dashboard refresh cadence: five minutes.
const DefaultInterval = 300 * time.Second

type refresher interface {
	RefreshAll(ctx context.Context)
}

// Poller triggers one full pass over all registered dashboards per tick.
// Passes run sequentially on a single goroutine; a slow pass simply delays
// the next one. There is no retry inside a tick, the next tick self-heals.
type Poller struct {
	engine   refresher
	interval time.Duration
	logger   *zap.Logger
}

// New creates a poller; a non-positive interval falls back to DefaultInterval.
func New(engine refresher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{engine: engine, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, refreshing immediately and then on every
// tick.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", zap.Duration("interval", p.interval))

	p.engine.RefreshAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			started := time.Now()
			p.engine.RefreshAll(ctx)
			p.logger.Debug("refresh pass finished", zap.Duration("took", time.Since(started)))
		}
	}
}
