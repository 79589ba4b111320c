// Package workerpool runs tasks with a fixed concurrency cap.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("worker pool closed")

type Task func(ctx context.Context)

type Pool struct {
	sem    *semaphore.Weighted
	size   int64
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a pool running at most size tasks at once. size < 1 is
// treated as 1.
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		logger: logger,
	}
}

func (p *Pool) Size() int {
	return int(p.size)
}

// Submit blocks until a slot is free, then runs task in its own goroutine.
// It returns ctx.Err() if ctx ends first and ErrClosed after Close. ctx only
// bounds the wait: the task gets ctx's values without its cancellation, since
// submitters usually return before the task finishes.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("workerpool: task is nil")
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.sem.Release(1)
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	taskCtx := context.WithoutCancel(ctx)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("worker_task_panic", "panic", rec)
			}
		}()
		task(taskCtx)
	}()
	return nil
}

// Close rejects new submissions and waits for in-flight tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
