package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL,
	metadata  TEXT
);
CREATE INDEX IF NOT EXISTS idx_timestamp ON conversations(timestamp);

CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// timestampLayout is RFC 3339 with a fixed-width fraction: the timestamp
// column is compared and ordered as TEXT, and variable-width fractions
// sort "05.5Z" before "05Z".
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// database is the durable mirror behind Store. Timestamps are stored as
// RFC 3339 text so the timestamp index sorts chronologically.
type database struct {
	db *sql.DB
}

func openDatabase(path string) (*database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &database{db: db}, nil
}

func (d *database) close() error {
	return d.db.Close()
}

func (d *database) insertMessage(msg Message) error {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = d.db.Exec(
		`INSERT INTO conversations (timestamp, role, content, metadata) VALUES (?, ?, ?, ?)`,
		msg.Timestamp.Format(timestampLayout), msg.Role, msg.Content, string(meta),
	)
	return err
}

// messagesSince returns all stored messages newer than cutoff in
// chronological order. A zero cutoff returns everything.
func (d *database) messagesSince(cutoff time.Time) ([]Message, error) {
	rows, err := d.db.Query(
		`SELECT timestamp, role, content, metadata
		 FROM conversations
		 WHERE timestamp > ?
		 ORDER BY timestamp ASC`,
		cutoff.Format(timestampLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var ts, role, content string
		var meta sql.NullString
		if err := rows.Scan(&ts, &role, &content, &meta); err != nil {
			return nil, err
		}

		msg := Message{Role: role, Content: content, Metadata: map[string]any{}}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			msg.Timestamp = parsed
		}
		if meta.Valid && meta.String != "" {
			json.Unmarshal([]byte(meta.String), &msg.Metadata)
		}

		out = append(out, msg)
	}
	return out, rows.Err()
}

func (d *database) upsertPreference(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}

	_, err = d.db.Exec(
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().Format(timestampLayout),
	)
	return err
}

func (d *database) allPreferences() (map[string]any, error) {
	rows, err := d.db.Query(`SELECT key, value FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Legacy rows may hold bare strings.
			out[key] = raw
			continue
		}
		out[key] = v
	}
	return out, rows.Err()
}
