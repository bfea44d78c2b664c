package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolClosed is returned when submitting to a shut down pool
	ErrPoolClosed = errors.New("worker pool shut down")

	logger logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger replaces the logger used for task errors and panics
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

// SafeGo executes fn in a goroutine with a timeout and panic recovery.
// Errors are logged, never returned.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		run(ctx, taskName, fn)
	}()
}

// SafeGoNoError is like SafeGo for functions that don't return errors
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// run executes fn, converting a panic into a logged error
func run(ctx context.Context, taskName string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.WithFields(logrus.Fields{
				"task":  taskName,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("background task panicked")
		}
	}()

	if err = fn(ctx); err != nil {
		logger.WithField("task", taskName).WithError(err).Warn("background task failed")
	}
	return err
}

// WorkerPool runs submitted tasks on a fixed number of workers
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	workCh   chan func(context.Context) error
	doneCh   chan struct{}
	errCh    chan error
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of workers, each task bounded by timeout
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pool.worker()
			}()
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. It blocks while the queue is full.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued ones to finish
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.workCh)
	p.mu.Unlock()

	select {
	case <-p.doneCh:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

// Errors returns a channel that receives task errors. Errors are dropped when it is full.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
			err := run(ctx, p.taskName, fn)
			cancel()
			if err != nil {
				select {
				case p.errCh <- err:
				default:
				}
			}
		}
	}
}
