package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the local journal of dashboard events and queries.
type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &DB{sql: conn, now: time.Now}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY,
			ts         INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create events: %w", err)
	}

	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type, ts DESC)`); err != nil {
		return fmt.Errorf("index events: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS queries (
			id       INTEGER PRIMARY KEY,
			ts       INTEGER NOT NULL,
			question TEXT NOT NULL,
			answer   TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create queries: %w", err)
	}

	return nil
}

func (d *DB) InsertEvent(eventType, detail string) error {
	_, err := d.sql.Exec(
		`INSERT INTO events (ts, event_type, detail) VALUES (?, ?, ?)`,
		d.now().UnixMilli(), eventType, detail,
	)
	return err
}

// RecentEvents returns up to limit events, newest first.
func (d *DB) RecentEvents(limit int) ([]Event, error) {
	rows, err := d.sql.Query(
		`SELECT id, ts, event_type, detail
		 FROM events
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.EventType, &e.Detail); err != nil {
			return nil, err
		}
		e.Ts = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (d *DB) InsertQuery(question, answer string) error {
	_, err := d.sql.Exec(
		`INSERT INTO queries (ts, question, answer) VALUES (?, ?, ?)`,
		d.now().UnixMilli(), question, answer,
	)
	return err
}

// RecentQueries returns up to limit queries, newest first.
func (d *DB) RecentQueries(limit int) ([]QueryRecord, error) {
	rows, err := d.sql.Query(
		`SELECT id, ts, question, answer FROM queries ORDER BY ts DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var q QueryRecord
		var ts int64
		if err := rows.Scan(&q.ID, &ts, &q.Question, &q.Answer); err != nil {
			return nil, err
		}
		q.Ts = time.UnixMilli(ts)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Touch records the time of the last successful status poll.
func (d *DB) Touch() error {
	return d.SetMeta("last_poll", fmt.Sprintf("%d", d.now().UnixMilli()))
}

func (d *DB) LastPoll() time.Time {
	v, _ := d.GetMeta("last_poll")
	if v == "" {
		return time.Time{}
	}
	var ts int64
	fmt.Sscanf(v, "%d", &ts)
	return time.UnixMilli(ts)
}
