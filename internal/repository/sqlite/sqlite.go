// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo. Use ":memory:" as the path for a throwaway database in tests.
//
// Every repository hangs off a single *DB connection pool:
//
//	db.Images()  → repository.ImageRepository
//	db.Users()   → repository.UserRepository
//	db.Actions() → repository.ActionRepository
//
// All timestamps are written in UTC so that the TEXT representation SQLite
// stores sorts chronologically.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the per-entity repositories.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/bookmarks.db"  → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
//
// CONNECTION PRAGMAS:
// database/sql keeps a pool, and PRAGMAs are per connection. A PRAGMA run
// once with Exec reaches only whichever connection served that call, so
// the others would silently skip foreign key checks. They go in the DSN
// instead, where the driver applies them to every connection it opens:
//
//	foreign_keys(1)      REFERENCES constraints are OFF by default in SQLite
//	journal_mode(WAL)    readers proceed while a write is in progress
//	busy_timeout(5000)   wait up to 5s for a lock instead of failing with SQLITE_BUSY
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives inside one connection. A second pooled
	// connection would see an empty schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Images returns the image repository.
func (db *DB) Images() *ImageDB { return &ImageDB{conn: db.conn} }

// Users returns the user repository.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Actions returns the action log repository.
func (db *DB) Actions() *ActionDB { return &ActionDB{conn: db.conn} }

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// SCHEMA:
//
//	users ─┬─< images ──< image_likes >── users
//	       └─< actions
//
// Deleting a user cascades to their images, likes and log. Deleting an
// image cascades to its likes; log rows keep the dangling target_id,
// since the log records what happened.
//
// There is no migration version table. Every statement is additive and
// re-runnable; a change to an existing column would need one.
func (db *DB) migrate() error {
	// github_id is nullable: local accounts have none. SQLite allows any
	// number of NULLs in a UNIQUE column.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			avatar_url    TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			slug        TEXT NOT NULL,
			url         TEXT NOT NULL,
			file        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			recipe      TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_images_created_at ON images(created_at);
		CREATE INDEX IF NOT EXISTS idx_images_user_id ON images(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating images table: %w", err)
	}

	// The composite primary key makes the liked-by relation a set.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS image_likes (
			image_id   TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (image_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_image_likes_user_id ON image_likes(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating image_likes table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			verb        TEXT NOT NULL,
			target_type TEXT NOT NULL DEFAULT '',
			target_id   TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_actions_user_created ON actions(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating actions table: %w", err)
	}

	return nil
}
