package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackebrot/go-fibonacci"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/hackebrot/go-timer-scheduler/internal/fib"
	"github.com/hackebrot/go-timer-scheduler/pkg/scheduler"
)

// defaultResultsBufSize is the capacity of the results channel.
const defaultResultsBufSize = 100

var flags = []cli.Flag{
	cli.IntFlag{
		Name:  "count, c",
		Value: 10,
		Usage: "number of fibonacci jobs to schedule",
	},
	cli.DurationFlag{
		Name:  "max-offset",
		Value: 20 * time.Second,
		Usage: "upper bound of the random delay before a job fires",
	},
	cli.DurationFlag{
		Name:  "interval",
		Value: scheduler.DefaultInterval,
		Usage: "polling cadence of the driver loop",
	},
	cli.BoolFlag{
		Name:  "dynamic",
		Usage: "sleep until the next deadline instead of polling",
	},
	cli.IntFlag{
		Name:  "workers, w",
		Usage: "run jobs on a pool of workers instead of the driver goroutine",
	},
	cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve prometheus metrics on this address",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	},
}

func main() {
	app := cli.App{
		Name:      "timerdemo",
		HelpName:  "timerdemo",
		Usage:     "schedules fibonacci jobs on timers and drives them to completion",
		UsageText: "timerdemo [options]",
		Flags:     flags,
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("timerdemo failed", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	count := c.Int("count")
	maxOffset := c.Duration("max-offset")
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	if maxOffset <= 0 {
		return fmt.Errorf("max-offset must be positive, got %s", maxOffset)
	}

	reg := prometheus.NewRegistry()
	s := scheduler.New(scheduler.WithMetrics(reg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			slog.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	results := make(chan fib.Result, defaultResultsBufSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		processResults(results)
	}()

	pool := newWorkerPool(c.Int("workers"), results)
	pool.start()

	for n := 1; n <= count; n++ {
		offset := time.Duration(rand.Int63n(int64(maxOffset)))
		job := fib.NewJob(fmt.Sprintf("fib%d-+%s", n, offset.Round(time.Millisecond)), n, fibonacci.NewRecursive())

		h, err := s.Schedule(scheduler.After(offset), func() {
			pool.submit(ctx, job, s.Now())
		})
		if err != nil {
			return fmt.Errorf("scheduling %s: %w", job.ID, err)
		}
		job.Due, _ = s.Deadline(h)
	}

	if err := scheduleReport(s); err != nil {
		return err
	}

	err := scheduler.Run(ctx, s, scheduler.DriverConfig{
		Interval:     c.Duration("interval"),
		Dynamic:      c.Bool("dynamic"),
		StopWhenIdle: true,
	})
	if errors.Is(err, context.Canceled) {
		slog.Info("driver stopped", "count_dropped", s.Clear())
		err = nil
	}

	pool.shutdown()
	close(results)
	<-done

	return err
}

// scheduleReport registers a daily report timer and withdraws it again, so the
// run ends once the jobs are done.
func scheduleReport(s *scheduler.Scheduler) error {
	h, err := s.Schedule(scheduler.Daily(6, 0), func() {
		slog.Info("daily report")
	})
	if err != nil {
		return fmt.Errorf("scheduling daily report: %w", err)
	}

	due, _ := s.Deadline(h)
	slog.Info("scheduled daily report", "due", due.Format(time.RFC3339))

	if err := s.Cancel(h); err != nil {
		return fmt.Errorf("cancelling daily report: %w", err)
	}
	if err := s.Cancel(h); errors.Is(err, scheduler.ErrNotPresent) {
		slog.Debug("daily report already cancelled")
	}
	return nil
}
