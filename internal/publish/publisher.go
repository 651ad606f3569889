// Package publish fans interaction events out to NATS for downstream
// consumers (dashboards, alerting). Publishing is strictly optional: the
// engine records events to its own store first and treats publish failures
// as recoverable.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sgerhart/decoynet/internal/model"
)

const (
	// DefaultSubject for publishing events.
	DefaultSubject = "decoy.events"
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout = 10 * time.Second
	// ReconnectWait between client reconnect attempts.
	ReconnectWait = 5 * time.Second
)

// Publisher publishes events to a NATS subject as JSON.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewPublisher connects to NATS. The client reconnects on its own for the
// lifetime of the process.
func NewPublisher(natsURL, subject string, logger *slog.Logger) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(natsURL,
		nats.Timeout(ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	logger.Info("NATS publisher initialized", "url", natsURL, "subject", subject)
	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// PublishEvent publishes one event. Routing hints travel as headers so
// consumers can filter without parsing the body.
func (p *Publisher) PublishEvent(ctx context.Context, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("x-session-id", ev.SessionID)
	msg.Header.Set("x-service", string(ev.Service))
	msg.Header.Set("x-classification", string(ev.Classification))
	if ev.Tool != "" {
		msg.Header.Set("x-tool", ev.Tool)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish canceled: %w", err)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published", "subject", p.subject, "session_id", ev.SessionID)
	return nil
}

// IsReady reports whether the connection is currently up.
func (p *Publisher) IsReady() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	p.logger.Info("NATS publisher closed")
	return nil
}
