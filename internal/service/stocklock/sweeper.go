package stocklock

import (
	"context"
	"time"

	"jastip/internal/monitor"
	"jastip/pkg/log"
)

// Sweeper periodically releases expired reservations
type Sweeper struct {
	locker   Locker
	interval time.Duration
	metrics  *monitor.MetricsCollector
	stopCh   chan struct{}
}

// NewSweeper creates a sweeper for the given locker. A nil metrics collector
// disables recording.
func NewSweeper(locker Locker, interval time.Duration, metrics *monitor.MetricsCollector) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		locker:   locker,
		interval: interval,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval": s.interval.String(),
	}).Info("Stock lock sweeper started")

	for {
		select {
		case <-ticker.C:
			released := s.locker.SweepExpired(ctx)
			s.metrics.RecordSweep(released)
			s.metrics.SetActiveLocks(len(s.locker.ListActive()))
		case <-ctx.Done():
			log.Info("Stock lock sweeper stopped: context cancelled")
			return
		case <-s.stopCh:
			log.Info("Stock lock sweeper stopped")
			return
		}
	}
}

// Stop terminates the sweep loop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
