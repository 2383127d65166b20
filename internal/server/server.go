// Package server runs the HTTP API and its background token sweeper.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/vaughan-dsouza/taskboard/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Sweeper purges expired one-time tokens.
type Sweeper interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type Server struct {
	srv           *http.Server
	sweeper       Sweeper
	sweepInterval time.Duration
	logger        logging.Logger
}

func New(addr string, handler http.Handler, sweeper Sweeper, sweepInterval time.Duration, logger logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sweeper:       sweeper,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.sweep(sweepCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopSweep()
		<-sweepDone
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	<-sweepDone
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "server exited")
	return nil
}

func (s *Server) sweep(ctx context.Context) {
	if s.sweeper == nil || s.sweepInterval <= 0 {
		return
	}
	t := time.NewTicker(s.sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.sweeper.PurgeExpiredTokens(ctx)
			if err != nil {
				s.logger.Warn(ctx, "token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "expired tokens purged", "count", n)
			}
		}
	}
}
