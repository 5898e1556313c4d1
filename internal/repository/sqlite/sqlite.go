// Package sqlite implements repository.UserRepository on a local SQLite file.
//
// It stands in for the provider's data API during local development
// (store.driver = sqlite). The schema mirrors the provider's users table.
//
// modernc.org/sqlite is a pure Go port, so the binary still builds without
// a C toolchain. Use ":memory:" for tests.
package sqlite

import (
	"database/sql"
	"fmt"

	// registers the "sqlite" driver with database/sql
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/users.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database, lost on close
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open is lazy; Ping surfaces a bad path now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// every :memory: connection is its own database
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the users table. CREATE ... IF NOT EXISTS makes it safe to
// run on every start.
//
// username and email are indexed for the register lookups but deliberately
// not UNIQUE: the provider's table does not enforce them either.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL,
			profile_image TEXT NOT NULL DEFAULT 'default-avatar.jpg',
			role          TEXT NOT NULL DEFAULT 'user',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}
