// Package prune periodically removes stale users from storage.
package prune

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aiostreams/internal/metrics"
)

const defaultEscalateAfter = 5

// Pruner deletes users not seen for maxDays.
type Pruner interface {
	PruneUsers(ctx context.Context, maxDays int) (int64, error)
}

// Scheduler runs a prune, waits Interval, and repeats. A failed prune is
// logged and the loop carries on; nothing but ctx stops it.
type Scheduler struct {
	Pruner   Pruner
	Interval time.Duration
	MaxDays  int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// EscalateAfter is how many failures in a row bump the log level to error.
	EscalateAfter int

	failures int
}

func NewScheduler(p Pruner, interval time.Duration, maxDays int, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		Pruner:        p,
		Interval:      interval,
		MaxDays:       maxDays,
		Logger:        logger,
		Metrics:       m,
		EscalateAfter: defaultEscalateAfter,
	}
}

// Run blocks until ctx is cancelled. The first prune happens immediately.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.attempt(ctx)

		timer := time.NewTimer(s.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) attempt(ctx context.Context) {
	defer func() {
		// a panicking store must not end the loop either
		if r := recover(); r != nil {
			s.fail(zap.Any("panic", r))
		}
	}()

	n, err := s.Pruner.PruneUsers(ctx, s.MaxDays)
	if err != nil {
		s.fail(zap.Error(err))
		return
	}

	s.failures = 0
	s.record("ok")
	if s.Metrics != nil {
		s.Metrics.PrunedUsers.Add(float64(n))
	}
	if n > 0 {
		s.Logger.Info("pruned users", zap.Int64("count", n), zap.Int("max_days", s.MaxDays))
	}
}

func (s *Scheduler) fail(field zap.Field) {
	s.failures++
	s.record("error")

	fields := []zap.Field{field, zap.Int("consecutive_failures", s.failures)}
	if s.EscalateAfter > 0 && s.failures%s.EscalateAfter == 0 {
		s.Logger.Error("pruning keeps failing", fields...)
		return
	}
	s.Logger.Warn("prune attempt failed", fields...)
}

func (s *Scheduler) record(result string) {
	if s.Metrics != nil {
		s.Metrics.PruneRuns.WithLabelValues(result).Inc()
	}
}
