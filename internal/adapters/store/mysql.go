package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS priority_digests (
			mailbox VARCHAR(255) PRIMARY KEY,
			digest_id CHAR(36) NOT NULL,
			payload MEDIUMBLOB NOT NULL,
			generated_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_priority_digests_expires_at (expires_at)
		)`,
	},
	upsert: `INSERT INTO priority_digests (mailbox, digest_id, payload, generated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			digest_id = VALUES(digest_id),
			payload = VALUES(payload),
			generated_at = VALUES(generated_at),
			expires_at = VALUES(expires_at)`,
}

// MySQLStore is a MySQL implementation of core.DigestStore
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore connects to MySQL and creates the digest table if needed
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	s, err := newSQLStore(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		return nil, err
	}
	return &MySQLStore{sqlStore: s}, nil
}
