package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sgerhart/decoynet/internal/model"
)

// SQLiteBackend stores events in a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema
// exists. The single-writer connection limit plus WAL keeps concurrent
// appends serialized without busy errors.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteBackend{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func initSQLiteSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
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
func (b *SQLiteBackend) Insert(ctx context.Context, ev *model.Event) (int64, error) {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return 0, fmt.Errorf("error serializing metadata: %w", err)
	}

	const query = `
INSERT INTO events
(session_id, timestamp, service, request_type, target, payload, source_ip, source_port, tool, classification, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	res, err := b.db.ExecContext(ctx, query,
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
	)
	if err != nil {
		return 0, fmt.Errorf("error inserting event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading insert id: %w", err)
	}
	return id, nil
}

// Query implements Backend.
func (b *SQLiteBackend) Query(ctx context.Context, f Filter) ([]*model.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UTC().UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until.UTC().UnixNano())
	}
	if f.Service != "" {
		where = append(where, "service = ?")
		args = append(args, string(f.Service))
	}
	if f.Classification != "" {
		where = append(where, "classification = ?")
		args = append(args, string(f.Classification))
	}
	if f.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, f.Tool)
	}

	query := "SELECT id, session_id, timestamp, service, request_type, target, payload, source_ip, source_port, tool, classification, metadata FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)

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

// Flush checkpoints the WAL so readers of the database file see every
// committed event.
func (b *SQLiteBackend) Flush(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("error checkpointing wal: %w", err)
	}
	return nil
}

// Close releases the underlying database resources.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// scanEvent reads one row from either backend's query result.
func scanEvent(rows *sql.Rows) (*model.Event, error) {
	var (
		ev       model.Event
		tsNanos  int64
		service  string
		class    string
		tool     sql.NullString
		metaJSON string
	)
	if err := rows.Scan(
		&ev.ID,
		&ev.SessionID,
		&tsNanos,
		&service,
		&ev.RequestType,
		&ev.Target,
		&ev.Payload,
		&ev.SourceIP,
		&ev.SourcePort,
		&tool,
		&class,
		&metaJSON,
	); err != nil {
		return nil, fmt.Errorf("error scanning event: %w", err)
	}

	ev.Timestamp = time.Unix(0, tsNanos).UTC()
	ev.Service = model.Service(service)
	ev.Classification = model.Classification(class)
	if tool.Valid {
		ev.Tool = tool.String
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("error parsing metadata: %w", err)
		}
	}
	return &ev, nil
}

// nullable maps an empty tool identifier to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
