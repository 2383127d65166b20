package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaughan-dsouza/taskboard/internal/logging"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	sweeper := &countingSweeper{}
	srv := New(ln.Addr().String(), handler, sweeper, 10*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}

	after := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load(), "sweeper kept running after shutdown")
}

func TestServer_SweepDisabled(t *testing.T) {
	srv := New(":0", http.NotFoundHandler(), nil, time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// returns immediately without a sweeper
	srv.sweep(ctx)
}
