package readiness

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		PollInterval:   20 * time.Millisecond,
		SettleDelay:    0,
		RequestTimeout: 200 * time.Millisecond,
	}
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// freePort returns a port with nothing listening on it.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestWaitUntilReadyStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"not found counts as ready", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, false},
		{"unavailable", http.StatusServiceUnavailable, false},
		{"no content", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := New(fastConfig(), nil)
			got := p.WaitUntilReady(context.Background(), serverPort(t, srv), 300*time.Millisecond)

			assert.Equal(t, tt.want, got)
			if !tt.want {
				assert.Greater(t, hits.Load(), int32(1), "should keep polling until the deadline")
			}
		})
	}
}

func TestWaitUntilReadyBecomesHealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(fastConfig(), nil)
	assert.True(t, p.WaitUntilReady(context.Background(), serverPort(t, srv), 5*time.Second))
	assert.Equal(t, int32(4), hits.Load())
}

func TestWaitUntilReadyNothingListening(t *testing.T) {
	p := New(fastConfig(), nil)

	start := time.Now()
	got := p.WaitUntilReady(context.Background(), freePort(t), 200*time.Millisecond)

	assert.False(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitUntilReadySettles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.SettleDelay = 150 * time.Millisecond
	p := New(cfg, nil)

	start := time.Now()
	assert.True(t, p.WaitUntilReady(context.Background(), serverPort(t, srv), time.Second))
	assert.GreaterOrEqual(t, time.Since(start), cfg.SettleDelay)
}

func TestWaitUntilReadySlowRequestBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := New(fastConfig(), nil)

	start := time.Now()
	assert.False(t, p.WaitUntilReady(context.Background(), serverPort(t, srv), 500*time.Millisecond))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestWaitUntilReadyEndlessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chunk := make([]byte, 1024)
		for r.Context().Err() == nil {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RequestTimeout = 2 * time.Second
	p := New(cfg, nil)

	start := time.Now()
	assert.True(t, p.WaitUntilReady(context.Background(), serverPort(t, srv), 5*time.Second))
	assert.Less(t, time.Since(start), time.Second, "body drain must not run until the request timeout")
}

func TestWaitUntilReadyServiceExited(t *testing.T) {
	p := New(fastConfig(), nil).WithAliveCheck(func() bool { return false })

	start := time.Now()
	assert.False(t, p.WaitUntilReady(context.Background(), freePort(t), 10*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitUntilReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	p := New(fastConfig(), nil)

	start := time.Now()
	assert.False(t, p.WaitUntilReady(ctx, freePort(t), 10*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewDefaults(t *testing.T) {
	p := New(Config{}, nil)
	assert.Equal(t, DefaultHealthPath, p.cfg.HealthPath)
	assert.Equal(t, DefaultPollInterval, p.cfg.PollInterval)
	assert.Equal(t, DefaultRequestTimeout, p.client.Timeout)
	assert.Zero(t, p.cfg.SettleDelay)
	assert.Equal(t, "http://127.0.0.1:54125/health", p.URL(54125))

	p = New(Config{Host: "::1", HealthPath: "/ping"}, nil)
	assert.Equal(t, "http://[::1]:8080/ping", p.URL(8080))
}
