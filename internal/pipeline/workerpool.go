package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/foliolab/enrich/internal/logging"
)

// WorkerPool bounds concurrent CPU-bound work (automaton scans across
// chunks, overlap resolution passes) onto a fixed goroutine pool
// backed by panjf2000/ants, tracking processed/failed counts, total
// latency, and an active-worker gauge.
type WorkerPool struct {
	pool *ants.Pool
	log  *logging.Logger

	processedJobs int64
	failedJobs    int64
	totalLatency  int64 // nanoseconds
	activeWorkers int64
}

// NewWorkerPool builds a pool with the given maximum concurrency.
func NewWorkerPool(size int) (*WorkerPool, error) {
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &WorkerPool{pool: p, log: logging.New("WORKERPOOL")}, nil
}

// Submit runs fn on the pool, blocking until a slot is free, and
// records its outcome in the pool's stats.
func (w *WorkerPool) Submit(fn func() error) error {
	done := make(chan error, 1)
	start := time.Now()
	err := w.pool.Submit(func() {
		atomic.AddInt64(&w.activeWorkers, 1)
		defer atomic.AddInt64(&w.activeWorkers, -1)
		done <- fn()
	})
	if err != nil {
		return err
	}
	result := <-done
	atomic.AddInt64(&w.totalLatency, int64(time.Since(start)))
	if result != nil {
		atomic.AddInt64(&w.failedJobs, 1)
	} else {
		atomic.AddInt64(&w.processedJobs, 1)
	}
	return result
}

// Stats is a snapshot of the pool's running counters.
type Stats struct {
	ProcessedJobs int64
	FailedJobs    int64
	AverageLatency time.Duration
	ActiveWorkers int64
	Capacity      int
	Running       int
}

func (w *WorkerPool) Stats() Stats {
	processed := atomic.LoadInt64(&w.processedJobs)
	var avg time.Duration
	if processed > 0 {
		avg = time.Duration(atomic.LoadInt64(&w.totalLatency) / processed)
	}
	return Stats{
		ProcessedJobs:  processed,
		FailedJobs:     atomic.LoadInt64(&w.failedJobs),
		AverageLatency: avg,
		ActiveWorkers:  atomic.LoadInt64(&w.activeWorkers),
		Capacity:       w.pool.Cap(),
		Running:        w.pool.Running(),
	}
}

func (w *WorkerPool) Release() {
	w.pool.Release()
}
