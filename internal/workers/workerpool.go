package workers

import (
	"sync"

	"github.com/Shugur-Network/edge-relay/internal/logger"
	"go.uber.org/zap"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	mu      sync.RWMutex
	jobCh   chan func()
	wg      sync.WaitGroup // pending jobs
	workers sync.WaitGroup // running goroutines
	stopped bool
}

// NewWorkerPool initializes a worker pool with a fixed number of workers.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	wp := &WorkerPool{
		jobCh: make(chan func(), jobBufferSize),
	}
	wp.spawn(workerCount)
	return wp
}

func (wp *WorkerPool) spawn(n int) {
	for i := 0; i < n; i++ {
		wp.workers.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.workers.Done()
	for job := range wp.jobCh {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job func()) {
	defer wp.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker job panicked", zap.Any("panic", r))
		}
	}()
	job()
}

// AddJob enqueues a job without blocking. It returns false when the queue
// is full or the pool is stopped.
func (wp *WorkerPool) AddJob(job func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}

	wp.wg.Add(1)
	select {
	case wp.jobCh <- job:
		return true
	default: // Drop the job if queue is full
		wp.wg.Done()
		return false
	}
}

// Wait blocks until all queued jobs are completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop drains the queue and stops the workers. Further jobs are refused.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobCh)
	wp.mu.Unlock()

	wp.workers.Wait()
}
