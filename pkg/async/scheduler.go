package async

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs jobs after a delay on a bounded worker pool
type Scheduler struct {
	pool *WorkerPool

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	pending sync.WaitGroup
	stopped bool
}

// NewScheduler creates a scheduler with the given concurrency and per-job timeout
func NewScheduler(ctx context.Context, workers int, jobTimeout time.Duration) *Scheduler {
	return &Scheduler{
		pool:   NewWorkerPool(ctx, workers, "scheduled job", jobTimeout),
		timers: make(map[*time.Timer]struct{}),
	}
}

// RunAfter schedules job to run once after delay. It reports false when the
// scheduler is already drained.
func (s *Scheduler) RunAfter(delay time.Duration, name string, job func(context.Context) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		logger.WithField("task", name).Warn("scheduler stopped, dropping job")
		return false
	}

	wrapped := func(ctx context.Context) error {
		defer s.pending.Done()
		return run(ctx, name, job)
	}
	s.pending.Add(1)

	if delay <= 0 {
		s.submit(name, wrapped)
		return true
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.submit(name, wrapped)
	})
	s.timers[t] = struct{}{}
	return true
}

func (s *Scheduler) submit(name string, fn func(context.Context) error) {
	// Submit blocks while the queue is full
	go func() {
		if err := s.pool.Submit(fn); err != nil {
			logger.WithField("task", name).WithError(err).Warn("failed to submit scheduled job")
			s.pending.Done()
		}
	}()
}

// Drain stops accepting jobs, cancels timers that have not fired, and waits up
// to timeout for running jobs.
func (s *Scheduler) Drain(timeout time.Duration) error {
	s.mu.Lock()
	s.stopped = true
	for t := range s.timers {
		if t.Stop() {
			s.pending.Done()
		}
		delete(s.timers, t)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
	return s.pool.Shutdown(timeout)
}

// Wait blocks until every scheduled job has finished. Intended for tests.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}
