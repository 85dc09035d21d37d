package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/timeutil"
)

func TestListener_StatsLoggedOnTick(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := grid.NewEngine(grid.NewStore(grid.DefaultStoreConfig()))
	require.NoError(t, engine.Walk(context.Background(),
		[]grid.Point{cellPoint(0, 0), cellPoint(1, 0)}, []int64{3}))

	l := NewListener(ListenerConfig{
		Engine:      engine,
		Logger:      zap.New(core),
		LogInterval: 30 * time.Second,
		Clock:       clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.startStatsLogging(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, 5*time.Second, time.Millisecond)

	clock.Advance(10 * time.Second)
	clock.Advance(20 * time.Second)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("grid stats").Len() == 1
	}, 5*time.Second, time.Millisecond)

	cancel()
	<-done

	entry := logs.FilterMessage("grid stats").All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, int64(2), fields["cells"])
	assert.Equal(t, int64(1), fields["walks"])
	assert.Equal(t, int64(0), fields["failures"])
}
