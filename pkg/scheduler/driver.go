package scheduler

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the fixed polling cadence of the driver loop.
	DefaultInterval = 1 * time.Millisecond

	// DefaultMaxSleep caps a dynamic sleep so wall-clock steps are noticed.
	DefaultMaxSleep = 60 * time.Second
)

// DriverConfig controls the driver loop.
type DriverConfig struct {
	// Interval between ticks in fixed mode. Defaults to DefaultInterval.
	Interval time.Duration

	// Dynamic sleeps until the next deadline instead of polling at Interval.
	Dynamic bool

	// MaxSleep bounds a single dynamic sleep. Defaults to DefaultMaxSleep.
	MaxSleep time.Duration

	// StopWhenIdle makes Run return nil once no timers are pending.
	StopWhenIdle bool
}

// Run drives s until ctx is cancelled, calling Tick with the scheduler's clock.
// Every callback runs on the goroutine that called Run.
func Run(ctx context.Context, s *Scheduler, cfg DriverConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = DefaultMaxSleep
	}

	s.logger.Debug("starting timer driver", "count_timers", s.Pending(), "dynamic", cfg.Dynamic)

	if cfg.Dynamic {
		return runDynamic(ctx, s, cfg)
	}
	return runPolling(ctx, s, cfg)
}

// runPolling ticks at a fixed interval.
func runPolling(ctx context.Context, s *Scheduler, cfg DriverConfig) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		s.Tick(s.Now())

		if cfg.StopWhenIdle && s.Pending() == 0 {
			s.logger.Debug("no remaining timers, stopping driver")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runDynamic sleeps until the next deadline, capped at cfg.MaxSleep.
func runDynamic(ctx context.Context, s *Scheduler, cfg DriverConfig) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		s.Tick(s.Now())

		if cfg.StopWhenIdle && s.Pending() == 0 {
			s.logger.Debug("no remaining timers, stopping driver")
			return nil
		}

		sleep := cfg.MaxSleep
		if next, ok := s.NextDeadline(); ok {
			sleep = min(max(next.Sub(s.Now()), 0), cfg.MaxSleep)
		}
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
