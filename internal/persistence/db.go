// Package persistence provides the SQLite event journal.
// The grid itself is regenerated from its seed on start; only the event
// history and a few metadata keys survive restarts.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexterrain/internal/engine"
)

// Metadata keys.
const (
	MetaLastTick = "last_tick"
	MetaSeed     = "seed"
)

// DB wraps a SQLite connection for the event journal.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type eventRow struct {
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
	MetaJSON    string `db:"meta_json"`
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (tick, description, category, meta_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		meta := ""
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("encode meta of %q event: %w", e.Category, err)
			}
			meta = string(b)
		}
		if _, err := stmt.Exec(e.Tick, e.Description, e.Category, meta); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first. An empty
// category matches every event.
func (db *DB) RecentEvents(category string, limit int) ([]engine.Event, error) {
	var rows []eventRow
	var err error
	if category == "" {
		err = db.conn.Select(&rows,
			"SELECT tick, description, category, meta_json FROM events ORDER BY id DESC LIMIT ?",
			limit,
		)
	} else {
		err = db.conn.Select(&rows,
			"SELECT tick, description, category, meta_json FROM events WHERE category = ? ORDER BY id DESC LIMIT ?",
			category, limit,
		)
	}
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, len(rows))
	for i, r := range rows {
		events[i] = engine.Event{Tick: r.Tick, Description: r.Description, Category: r.Category}
		if r.MetaJSON != "" {
			if err := json.Unmarshal([]byte(r.MetaJSON), &events[i].Meta); err != nil {
				return nil, fmt.Errorf("decode meta of event at tick %d: %w", r.Tick, err)
			}
		}
	}
	return events, nil
}

// EventCounts returns the number of stored events per category.
func (db *DB) EventCounts() (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	if err := db.conn.Select(&rows, "SELECT category, COUNT(*) AS n FROM events GROUP BY category"); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.N
	}
	return counts, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// GetMetaUint retrieves a numeric metadata value. Missing keys read as 0.
func (db *DB) GetMetaUint(key string) uint64 {
	s, err := db.GetMeta(key)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("bad metadata value", "key", key, "value", s)
		return 0
	}
	return v
}

// Flush writes the events recorded since the last flush plus the tick and
// seed metadata.
func (db *DB) Flush(w *engine.World) error {
	events := w.DrainPending()
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	st := w.Status()
	if err := db.SaveMeta(MetaLastTick, strconv.FormatUint(st.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(MetaSeed, strconv.FormatInt(st.Seed, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Debug("journal flushed", "events", len(events), "tick", st.Tick)
	return nil
}
