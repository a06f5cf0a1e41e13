package main

import (
	"log/slog"
	"slices"
	"time"

	"github.com/hackebrot/go-timer-scheduler/internal/fib"
)

// processResults logs job results and summarizes how late timers fired and how
// long the successful computations took.
func processResults(results <-chan fib.Result) {
	var lateness, durations []time.Duration
	for result := range results {
		duration := result.EndTime.Sub(result.StartTime)
		lateness = append(lateness, result.Lateness())

		args := []any{
			"job_id", result.JobID,
			"worker_id", result.WorkerID,
			"lateness_microseconds", result.Lateness().Microseconds(),
			"duration_microseconds", duration.Microseconds(),
		}

		if result.Error != nil {
			args = append(args, "error", result.Error)
			slog.Error("error executing job", args...)
		} else {
			durations = append(durations, duration)
			slog.Info("job completed", args...)
		}
	}

	if len(lateness) > 0 {
		slog.Info("timer lateness summary", summarize(lateness)...)
	}
	if len(durations) > 0 {
		slog.Info("job execution summary", summarize(durations)...)
	}
}

// summarize returns log attributes describing a non-empty sample of durations.
func summarize(samples []time.Duration) []any {
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	mean := total / time.Duration(len(sorted))
	median := sorted[len(sorted)/2]

	args := []any{
		"count", len(sorted),
		"mean_microseconds", mean.Microseconds(),
		"median_microseconds", median.Microseconds(),
		"min_microseconds", sorted[0].Microseconds(),
		"max_microseconds", sorted[len(sorted)-1].Microseconds(),
	}

	// Percentiles require sufficient samples to be meaningful (1% of 100 = 1 sample)
	if len(sorted) >= 100 {
		p95 := sorted[int(float64(len(sorted)-1)*0.95)]
		p99 := sorted[int(float64(len(sorted)-1)*0.99)]
		args = append(args,
			"p95_microseconds", p95.Microseconds(),
			"p99_microseconds", p99.Microseconds(),
		)
	}

	return args
}
