package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"muzzlewatch/internal/model"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		timestamp_ns INTEGER NOT NULL DEFAULT 0,
		filename TEXT NOT NULL,
		processed_image TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		x1 REAL DEFAULT 0,
		y1 REAL DEFAULT 0,
		x2 REAL DEFAULT 0,
		y2 REAL DEFAULT 0,
		label TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		class_id INTEGER DEFAULT 0,
		FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_detections_record_id ON detections(record_id);
	CREATE INDEX IF NOT EXISTS idx_detections_label ON detections(label);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Databases created before records were ordered by time lack timestamp_ns.
	hasColumn, err := db.hasColumn("records", "timestamp_ns")
	if err != nil {
		return err
	}
	if !hasColumn {
		if _, err := db.conn.Exec(`ALTER TABLE records ADD COLUMN timestamp_ns INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
		if err := db.backfillTimestamps(); err != nil {
			return err
		}
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_records_timestamp_ns ON records(timestamp_ns)`)
	return err
}

// backfillTimestamps fills timestamp_ns from the stored text timestamps.
// Rows whose timestamp cannot be parsed keep 0 and sort as the oldest.
func (db *DB) backfillTimestamps() error {
	rows, err := db.conn.Query(`SELECT id, timestamp FROM records WHERE timestamp_ns = 0`)
	if err != nil {
		return err
	}
	values := make(map[int64]int64)
	for rows.Next() {
		var (
			id int64
			ts string
		)
		if err := rows.Scan(&id, &ts); err != nil {
			rows.Close()
			return err
		}
		if parsed, err := model.ParseTimestamp(ts); err == nil {
			values[id] = parsed.UnixNano()
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for id, ns := range values {
		if _, err := db.conn.Exec(`UPDATE records SET timestamp_ns = ? WHERE id = ?`, ns, id); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, kind string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
