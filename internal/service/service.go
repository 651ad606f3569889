// Package service implements the emulated protocol endpoints. Each service
// is a state machine over one accepted connection: parse an exchange,
// fingerprint it, render a decoy reply, and record an event. Nothing here
// executes commands, touches the filesystem on behalf of a client, or
// validates credentials; every reply comes from the decoy generator.
package service

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/sgerhart/decoynet/internal/model"
)

// Handler is one protocol endpoint, driven by the orchestrator's accept
// loops.
type Handler interface {
	// Service identifies the protocol this handler emulates.
	Service() model.Service
	// HandleConn runs the protocol state machine over one connection. It
	// must return promptly once ctx is canceled or the connection closes,
	// and must close nothing it did not open: the caller owns conn.
	HandleConn(ctx context.Context, conn net.Conn)
}

// Limits bounds per-connection resource consumption.
type Limits struct {
	// IdleTimeout is the per-read deadline.
	IdleTimeout time.Duration
	// MaxLifetime caps the total connection duration.
	MaxLifetime time.Duration
	// MaxPayloadBytes caps how much request payload is retained.
	MaxPayloadBytes int
	// MaxRequests caps request cycles on one persistent web connection.
	MaxRequests int
	// MaxAttempts caps login attempts on one shell connection; 0 means
	// unbounded (the lifetime cap still applies).
	MaxAttempts int
}

// withDefaults fills unset limits.
func (l Limits) withDefaults() Limits {
	if l.IdleTimeout <= 0 {
		l.IdleTimeout = 30 * time.Second
	}
	if l.MaxLifetime <= 0 {
		l.MaxLifetime = 2 * time.Minute
	}
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = 4096
	}
	if l.MaxRequests <= 0 {
		l.MaxRequests = 32
	}
	return l
}

// connDeadlines applies the absolute lifetime deadline for writes and
// returns the hard deadline reads must never exceed.
func connDeadlines(conn net.Conn, l Limits) time.Time {
	hard := time.Now().Add(l.MaxLifetime)
	conn.SetWriteDeadline(hard)
	return hard
}

// armRead sets the next read deadline: the idle timeout, clipped to the
// connection's hard deadline.
func armRead(conn net.Conn, idle time.Duration, hard time.Time) {
	d := time.Now().Add(idle)
	if d.After(hard) {
		d = hard
	}
	conn.SetReadDeadline(d)
}

// readLimitedLine reads one LF-terminated line, dropping the trailing CR and
// silently discarding bytes beyond max so an adversarial long line cannot
// grow memory. io.EOF with buffered bytes yields those bytes without error.
func readLimitedLine(br *bufio.Reader, max int) (string, error) {
	var b strings.Builder
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return strings.TrimSuffix(b.String(), "\r"), nil
			}
			return "", err
		}
		if c == '\n' {
			return strings.TrimSuffix(b.String(), "\r"), nil
		}
		if b.Len() < max {
			b.WriteByte(c)
		}
	}
}

// newEvent builds the skeleton event for one exchange on conn.
func newEvent(svc model.Service, sessionID string, conn net.Conn) *model.Event {
	ip, port := model.SplitAddr(conn.RemoteAddr().String())
	return &model.Event{
		SessionID:  sessionID,
		Timestamp:  time.Now().UTC(),
		Service:    svc,
		SourceIP:   ip,
		SourcePort: port,
	}
}

// writeAll writes s fully, tolerating nothing: any short or failed write
// ends the connection at the caller.
func writeAll(conn net.Conn, s string) error {
	_, err := io.WriteString(conn, s)
	return err
}
