package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/monitoring"
	"github.com/banshee-data/gridpath/internal/timeutil"
	"github.com/banshee-data/gridpath/internal/wire"
)

// Listener accepts client connections and runs one session per connection
// against a shared Engine.
type Listener struct {
	address            string
	engine             *grid.Engine
	pool               *WorkerPool
	metrics            *Metrics
	logger             *zap.Logger
	maxFrameBytes      int
	closeAfterOneToAll bool
	readTimeout        time.Duration
	logInterval        time.Duration
	clock              timeutil.Clock

	mu       sync.Mutex
	ln       net.Listener
	sessions sync.WaitGroup
}

// ListenerConfig contains configuration options for the listener.
type ListenerConfig struct {
	Address            string
	Engine             *grid.Engine
	Workers            int
	Metrics            *Metrics
	Logger             *zap.Logger
	MaxFrameBytes      int
	CloseAfterOneToAll bool
	ReadTimeout        time.Duration
	LogInterval        time.Duration
	Clock              timeutil.Clock // drives stats logging; nil uses the real clock
}

// NewListener creates a listener with the provided configuration.
func NewListener(config ListenerConfig) *Listener {
	metrics := config.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	maxFrame := config.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = wire.DefaultMaxFrameBytes
	}

	pool := NewWorkerPool(config.Workers)
	pool.onChange = func(n int64) { metrics.poolInFlight.Set(float64(n)) }

	return &Listener{
		address:            config.Address,
		engine:             config.Engine,
		pool:               pool,
		metrics:            metrics,
		logger:             logger,
		maxFrameBytes:      maxFrame,
		closeAfterOneToAll: config.CloseAfterOneToAll,
		readTimeout:        config.ReadTimeout,
		logInterval:        logInterval,
		clock:              timeutil.OrReal(config.Clock),
	}
}

// Listen binds the TCP socket without accepting yet. It lets callers learn
// the bound address before Serve.
func (l *Listener) Listen() (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr(), nil
	}
	ln, err := net.Listen("tcp", l.address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	l.ln = ln
	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Close releases the socket bound by Listen. Serve closes it on its own when
// its context ends.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// Start binds if needed and serves until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	if _, err := l.Listen(); err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Serve accepts connections until ctx is cancelled, then closes open sessions
// and waits for them to finish. Temporary accept errors are retried with
// backoff; any other accept error also closes the open sessions before Serve
// returns it.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return errors.New("listener not bound")
	}

	monitoring.Logf("grid listener started on %s with %d workers", ln.Addr(), l.pool.Size())

	sessionCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()
	go l.startStatsLogging(sessionCtx)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				monitoring.Logf("grid listener stopping due to context cancellation")
				l.sessions.Wait()
				return ctx.Err()
			}
			if isTemporaryAcceptError(err) {
				backoff = nextAcceptBackoff(backoff)
				l.logger.Warn("accept failed, retrying",
					zap.Error(err), zap.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
				}
				continue
			}
			l.logger.Error("accept failed, closing sessions", zap.Error(err))
			cancelSessions()
			l.sessions.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		s := &session{
			id:       uuid.New(),
			conn:     conn,
			listener: l,
		}
		s.logger = l.logger.With(
			zap.String("session", s.id.String()),
			zap.String("remote", conn.RemoteAddr().String()),
		)
		l.sessions.Add(1)
		go func() {
			defer l.sessions.Done()
			s.serve(sessionCtx)
		}()
	}
}

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

func nextAcceptBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}

// isTemporaryAcceptError reports whether Accept may succeed on a later call,
// e.g. after file descriptors are released.
func isTemporaryAcceptError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// startStatsLogging periodically logs the engine counters and grid size.
func (l *Listener) startStatsLogging(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.logStats()
		}
	}
}

func (l *Listener) logStats() {
	store := l.engine.Store()
	c := store.Stats().Snapshot()
	l.logger.Info("grid stats",
		zap.Int("cells", store.Len()),
		zap.Int64("walks", c.Walks),
		zap.Int64("one_to_one", c.OneToOne),
		zap.Int64("one_to_all", c.OneToAll),
		zap.Int64("resets", c.Resets),
		zap.Int64("failures", c.Failures),
		zap.Int64("in_flight", l.pool.InFlight()),
	)
}
