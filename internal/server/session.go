package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/banshee-data/gridpath/internal/grid"
	"github.com/banshee-data/gridpath/internal/wire"
)

type session struct {
	id       uuid.UUID
	conn     net.Conn
	listener *Listener
	logger   *zap.Logger
}

// serve handles requests on one connection in order until the client hangs
// up, a framing error occurs, or ctx ends.
func (s *session) serve(ctx context.Context) {
	l := s.listener
	l.metrics.sessions.Inc()
	defer l.metrics.sessions.Dec()

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.conn.Close()

	s.logger.Debug("session opened")
	r := bufio.NewReader(s.conn)
	w := bufio.NewWriter(s.conn)

	for {
		if l.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		}
		frame, err := wire.ReadFrame(r, l.maxFrameBytes)
		if err != nil {
			s.endOnReadError(w, err)
			return
		}

		kind, resp := s.handle(ctx, frame)
		if err := wire.WriteFrame(w, resp.Marshal()); err != nil {
			s.logger.Warn("write response failed", zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			s.logger.Warn("flush response failed", zap.Error(err))
			return
		}
		if kind == grid.KindOneToAll && l.closeAfterOneToAll {
			s.logger.Debug("session closed after one-to-all")
			return
		}
	}
}

func (s *session) endOnReadError(w *bufio.Writer, err error) {
	l := s.listener
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, wire.ErrInvalidFrameSize):
		s.logger.Debug("session closed by client")
	case errors.Is(err, wire.ErrFrameTooLarge):
		l.metrics.frameErrors.WithLabelValues("too_large").Inc()
		s.logger.Warn("frame too large", zap.Error(err))
		// The body was not consumed so the stream cannot be resynchronised;
		// answer once and hang up.
		resp := wire.ErrorResponse("%v", err)
		if wire.WriteFrame(w, resp.Marshal()) == nil {
			w.Flush()
		}
	case errors.Is(err, net.ErrClosed):
		s.logger.Debug("session closed during shutdown")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			l.metrics.frameErrors.WithLabelValues("timeout").Inc()
			s.logger.Info("session idle timeout")
			return
		}
		l.metrics.frameErrors.WithLabelValues("read").Inc()
		s.logger.Warn("read frame failed", zap.Error(err))
	}
}

// handle decodes and dispatches one request and builds its response.
func (s *session) handle(ctx context.Context, frame []byte) (grid.Kind, *wire.Response) {
	l := s.listener
	start := time.Now()

	msg, err := wire.UnmarshalRequest(frame)
	if err != nil {
		l.metrics.observe("", wire.StatusError.String(), time.Since(start))
		s.logger.Warn("decode request failed", zap.Error(err))
		return "", wire.ErrorResponse("decode request: %v", err)
	}
	req, err := msg.ToEngine()
	if err != nil {
		l.metrics.observe("", wire.StatusError.String(), time.Since(start))
		s.logger.Warn("unsupported request", zap.Error(err))
		return "", wire.ErrorResponse("%v", err)
	}

	var res grid.Result
	var dispatchErr error
	if err := l.pool.Do(ctx, func() {
		res, dispatchErr = l.engine.Dispatch(ctx, req)
	}); err != nil {
		dispatchErr = err
	}

	resp := wire.NewResponse(res, dispatchErr)
	l.metrics.observe(req.Kind(), resp.Status.String(), time.Since(start))
	if dispatchErr != nil {
		s.logger.Info("request failed",
			zap.String("kind", string(req.Kind())),
			zap.Error(dispatchErr))
	}
	return req.Kind(), resp
}
