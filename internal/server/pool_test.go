package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	p := NewWorkerPool(3)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func() {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Equal(t, int64(0), p.InFlight())
}

func TestWorkerPool_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	p := NewWorkerPool(1)

	hold := make(chan struct{})
	started := make(chan struct{})
	go p.Do(context.Background(), func() {
		close(started)
		<-hold
	})
	<-started
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := p.Do(ctx, func() { ran = true })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
	assert.Equal(t, int64(1), p.InFlight())
}

func TestWorkerPool_NonPositiveSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, NewWorkerPool(0).Size())
	assert.Equal(t, 1, NewWorkerPool(-4).Size())
}

func TestWorkerPool_ReportsInFlight(t *testing.T) {
	t.Parallel()
	p := NewWorkerPool(2)
	var seen []int64
	p.onChange = func(n int64) { seen = append(seen, n) }

	require.NoError(t, p.Do(context.Background(), func() {}))
	assert.Equal(t, []int64{1, 0}, seen)
}
