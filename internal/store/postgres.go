package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/sgerhart/decoynet/internal/model"
)

// PostgresBackend stores events in PostgreSQL, for deployments where the
// analysis consumer lives on another host.
type PostgresBackend struct {
	db *sql.DB
}

var _ Backend = (*PostgresBackend)(nil)

// OpenPostgres connects to the database identified by dsn and ensures the
// schema exists.
func OpenPostgres(dsn string) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN must not be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initPostgresSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresBackend{db: db}, nil
}

func initPostgresSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	service TEXT NOT NULL,
	request_type TEXT NOT NULL,
	target TEXT NOT NULL,
	payload TEXT NOT NULL,
	source_ip TEXT NOT NULL,
	source_port INTEGER NOT NULL,
	tool TEXT,
	classification TEXT NOT NULL,
	metadata TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp);
`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// Insert implements Backend.
func (b *PostgresBackend) Insert(ctx context.Context, ev *model.Event) (int64, error) {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return 0, fmt.Errorf("error serializing metadata: %w", err)
	}

	const query = `
INSERT INTO events
(session_id, timestamp, service, request_type, target, payload, source_ip, source_port, tool, classification, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id;
`
	var id int64
	err = b.db.QueryRowContext(ctx, query,
		ev.SessionID,
		ev.Timestamp.UTC().UnixNano(),
		string(ev.Service),
		ev.RequestType,
		ev.Target,
		ev.Payload,
		ev.SourceIP,
		ev.SourcePort,
		nullable(ev.Tool),
		string(ev.Classification),
		string(meta),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting event: %w", err)
	}
	return id, nil
}

// Query implements Backend.
func (b *PostgresBackend) Query(ctx context.Context, f Filter) ([]*model.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.Since.IsZero() {
		where = append(where, "timestamp >= "+arg(f.Since.UTC().UnixNano()))
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= "+arg(f.Until.UTC().UnixNano()))
	}
	if f.Service != "" {
		where = append(where, "service = "+arg(string(f.Service)))
	}
	if f.Classification != "" {
		where = append(where, "classification = "+arg(string(f.Classification)))
	}
	if f.Tool != "" {
		where = append(where, "tool = "+arg(f.Tool))
	}

	query := "SELECT id, session_id, timestamp, service, request_type, target, payload, source_ip, source_port, tool, classification, metadata FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " ORDER BY id DESC LIMIT " + arg(limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return events, nil
}

// Flush is a no-op: postgres commits are durable as written.
func (b *PostgresBackend) Flush(ctx context.Context) error {
	return nil
}

// Close releases the connection pool.
func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
