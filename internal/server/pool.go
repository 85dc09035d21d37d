package server

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many requests run against the engine at once.
// Sessions are cheap goroutines; the pool keeps CPU-heavy searches from
// oversubscribing the machine when many clients are connected.
type WorkerPool struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	onChange func(n int64)
}

// NewWorkerPool returns a pool with size permits. size <= 0 means one.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of permits.
func (p *WorkerPool) Size() int { return p.size }

// InFlight returns the number of permits currently held.
func (p *WorkerPool) InFlight() int64 { return p.inFlight.Load() }

// Do runs fn while holding a permit. It returns ctx's error without running
// fn if ctx ends while waiting.
func (p *WorkerPool) Do(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.changed(p.inFlight.Add(1))
	defer func() {
		p.changed(p.inFlight.Add(-1))
		p.sem.Release(1)
	}()
	fn()
	return nil
}

func (p *WorkerPool) changed(n int64) {
	if p.onChange != nil {
		p.onChange(n)
	}
}
