package service

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sgerhart/decoynet/internal/decoy"
	"github.com/sgerhart/decoynet/internal/fingerprint"
	"github.com/sgerhart/decoynet/internal/model"
)

// captureRecorder collects recorded events for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []*model.Event
}

func (r *captureRecorder) Record(ctx context.Context, ev *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *captureRecorder) all() []*model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Event, len(r.events))
	copy(out, r.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testLimits() Limits {
	return Limits{
		IdleTimeout:     2 * time.Second,
		MaxLifetime:     10 * time.Second,
		MaxPayloadBytes: 4096,
		MaxRequests:     8,
	}
}

func testDetector() fingerprint.Detector {
	return fingerprint.New(fingerprint.Options{})
}

func testGenerator() *decoy.Generator {
	return decoy.New(decoy.Options{})
}

// startHandler serves h on an ephemeral port for the duration of the test.
func startHandler(t *testing.T, h Handler) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				h.HandleConn(ctx, conn)
			}()
		}
	}()

	t.Cleanup(func() {
		cancel()
		ln.Close()
	})
	return ln.Addr().String()
}

// dial connects to a started handler and arranges cleanup.
func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// waitEvents blocks until the recorder has at least n events.
func waitEvents(t *testing.T, r *captureRecorder, n int) []*model.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.all()) >= n
	}, 2*time.Second, 10*time.Millisecond, "expected %d events, have %d", n, len(r.all()))
	return r.all()
}

// readLine reads one line from a test connection.
func readTestLine(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	return line
}
