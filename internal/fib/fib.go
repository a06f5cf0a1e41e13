package fib

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hackebrot/go-fibonacci"
)

// Job computes the nth Fibonacci number when its timer fires.
type Job struct {
	ID       string
	Due      time.Time
	n        int
	strategy fibonacci.Strategy
}

// Result records when a job's timer fired and how long the computation took.
type Result struct {
	JobID     string
	WorkerID  string
	Due       time.Time
	FiredAt   time.Time
	StartTime time.Time
	EndTime   time.Time
	Error     error
}

// Lateness returns how long after its deadline the job's timer fired.
func (r Result) Lateness() time.Duration {
	return r.FiredAt.Sub(r.Due)
}

// NewJob creates a new Fibonacci computation job.
func NewJob(id string, n int, strategy fibonacci.Strategy) *Job {
	return &Job{
		ID:       id,
		n:        n,
		strategy: strategy,
	}
}

// Compute calculates the Fibonacci number and logs the result.
func (j *Job) Compute() error {
	slog.Info("starting computation", "job_id", j.ID, "n", j.n)

	if j.n < 0 {
		return fmt.Errorf("computation failed: n=%d is negative", j.n)
	}

	r := j.strategy.Compute(j.n)
	slog.Info("computation complete", "job_id", j.ID, "n", j.n, "result", r)

	return nil
}

// Execute runs the job and returns a result with timing and any error that occurred.
func Execute(j *Job, workerID string, firedAt time.Time) Result {
	startTime := time.Now()
	err := j.Compute()
	endTime := time.Now()

	return Result{
		JobID:     j.ID,
		WorkerID:  workerID,
		Due:       j.Due,
		FiredAt:   firedAt,
		StartTime: startTime,
		EndTime:   endTime,
		Error:     err,
	}
}
