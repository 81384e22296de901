// Package snapshot persists the last good view-model snapshot per coach so
// the Mini App can still open when the remote store is unreachable.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	coach_id INTEGER PRIMARY KEY,
	data     TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);
`

// DB wraps the SQLite snapshot database
type DB struct {
	conn *sql.DB
}

// Open opens the snapshot database at the specified path and ensures the
// schema exists
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Save upserts the snapshot for a coach
func (db *DB) Save(coachID int64, snap *session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO snapshots (coach_id, data, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(coach_id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
	`, coachID, string(data), time.Now().Unix())

	if err != nil {
		metrics.SnapshotOpsTotal.WithLabelValues(metrics.SnapshotOpSave, metrics.ResultFailure).Inc()
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	metrics.SnapshotOpsTotal.WithLabelValues(metrics.SnapshotOpSave, metrics.ResultSuccess).Inc()
	return nil
}

// Load retrieves the stored snapshot for a coach.
// Returns nil without error when none has been saved.
func (db *DB) Load(coachID int64) (*session.Snapshot, error) {
	var data string
	err := db.conn.QueryRow(`SELECT data FROM snapshots WHERE coach_id = ?`, coachID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.SnapshotOpsTotal.WithLabelValues(metrics.SnapshotOpLoad, metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode stored snapshot: %w", err)
	}

	metrics.SnapshotOpsTotal.WithLabelValues(metrics.SnapshotOpLoad, metrics.ResultSuccess).Inc()
	return &snap, nil
}

// Delete removes the stored snapshot for a coach
func (db *DB) Delete(coachID int64) error {
	if _, err := db.conn.Exec(`DELETE FROM snapshots WHERE coach_id = ?`, coachID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
