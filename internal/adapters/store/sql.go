package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/core"
)

// dialect holds the statements that differ between SQL engines
type dialect struct {
	name   string
	schema []string
	upsert string
}

// sqlStore keeps one row per mailbox with the digest encoded as JSON and
// the expiry as unix seconds
type sqlStore struct {
	db       *sql.DB
	dialect  dialect
	logger   *zap.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*sqlStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	s := &sqlStore{
		db:      db,
		dialect: d,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go runCleanup(s, cleanupFreq, s.stopCh, logger)
	}
	return s, nil
}

// Get retrieves the unexpired digest for a mailbox
func (s *sqlStore) Get(ctx context.Context, mailbox string) (*core.Digest, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM priority_digests
		WHERE mailbox = ? AND expires_at > ?
	`, mailbox, s.now().Unix()).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrDigestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query digest: %w", err)
	}
	return decodeDigest(data)
}

// Set stores a digest, replacing the previous one for the mailbox
func (s *sqlStore) Set(ctx context.Context, digest *core.Digest) error {
	data, err := encodeDigest(digest)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.dialect.upsert,
		digest.Mailbox, digest.ID.String(), data, digest.GeneratedAt.Unix(), digest.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store digest: %w", err)
	}
	return nil
}

// Delete removes the digest for a mailbox
func (s *sqlStore) Delete(ctx context.Context, mailbox string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM priority_digests WHERE mailbox = ?`, mailbox); err != nil {
		return fmt.Errorf("failed to delete digest: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (s *sqlStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM priority_digests WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired digests: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired digests",
			zap.String("store", s.dialect.name),
			zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *sqlStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("store", s.dialect.name), zap.Error(err))
		}
	})
}
