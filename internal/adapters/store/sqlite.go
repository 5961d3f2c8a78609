package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS priority_digests (
			mailbox TEXT PRIMARY KEY,
			digest_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			generated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_priority_digests_expires_at ON priority_digests(expires_at)`,
	},
	upsert: `INSERT OR REPLACE INTO priority_digests (mailbox, digest_id, payload, generated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
}

// SQLiteStore is a SQLite implementation of core.DigestStore
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
