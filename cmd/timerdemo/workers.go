package main

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hackebrot/go-timer-scheduler/internal/fib"
)

// driverWorkerID labels results of jobs run inline on the driver goroutine.
const driverWorkerID = "driver"

// firedJob is a job whose timer has fired, waiting for a worker.
type firedJob struct {
	job     *fib.Job
	firedAt time.Time
}

// workerPool executes fired jobs. With no workers, jobs run inline in the
// timer callback.
type workerPool struct {
	workerCount int
	wg          sync.WaitGroup
	ready       chan firedJob
	results     chan<- fib.Result
}

func newWorkerPool(workerCount int, results chan<- fib.Result) *workerPool {
	p := &workerPool{
		workerCount: max(workerCount, 0),
		results:     results,
	}
	if p.workerCount > 0 {
		p.ready = make(chan firedJob, defaultResultsBufSize)
	}
	return p
}

// start launches the workers.
func (p *workerPool) start() {
	p.wg.Add(p.workerCount)
	for i := range p.workerCount {
		go p.runWorker(i)
	}
}

// submit hands a fired job to the pool. It is called from timer callbacks on
// the driver goroutine.
func (p *workerPool) submit(ctx context.Context, job *fib.Job, firedAt time.Time) {
	if p.workerCount == 0 {
		p.results <- fib.Execute(job, driverWorkerID, firedAt)
		return
	}

	select {
	case p.ready <- firedJob{job: job, firedAt: firedAt}:
	case <-ctx.Done():
	}
}

// shutdown waits for queued jobs to finish.
func (p *workerPool) shutdown() {
	if p.ready != nil {
		close(p.ready)
	}
	p.wg.Wait()
}

// runWorker processes fired jobs and sends results.
func (p *workerPool) runWorker(id int) {
	defer p.wg.Done()

	for fj := range p.ready {
		p.results <- fib.Execute(fj.job, strconv.Itoa(id), fj.firedAt)
	}
}
