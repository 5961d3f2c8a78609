package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/core"
)

// MemoryStore is an in-memory implementation of core.DigestStore
type MemoryStore struct {
	entries     map[string][]byte
	expires     map[string]time.Time
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	now         func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a new in-memory digest store. A positive cleanupFreq
// starts a background task removing expired digests.
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries:     make(map[string][]byte),
		expires:     make(map[string]time.Time),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(s, cleanupFreq, s.stopCh, logger)
	}

	return s
}

// Get retrieves the digest for a mailbox. Entries are stored encoded so
// callers never share state with the store.
func (s *MemoryStore) Get(ctx context.Context, mailbox string) (*core.Digest, error) {
	s.mu.RLock()
	data, ok := s.entries[mailbox]
	expiresAt := s.expires[mailbox]
	s.mu.RUnlock()

	if !ok || !s.now().Before(expiresAt) {
		return nil, core.ErrDigestNotFound
	}
	return decodeDigest(data)
}

// Set stores a digest
func (s *MemoryStore) Set(ctx context.Context, digest *core.Digest) error {
	data, err := encodeDigest(digest)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[digest.Mailbox] = data
	s.expires[digest.Mailbox] = digest.ExpiresAt
	return nil
}

// Delete removes the digest for a mailbox
func (s *MemoryStore) Delete(ctx context.Context, mailbox string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, mailbox)
	delete(s.expires, mailbox)
	return nil
}

// Cleanup removes expired entries
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiredCount := 0
	for mailbox, expiresAt := range s.expires {
		if !now.Before(expiresAt) {
			delete(s.entries, mailbox)
			delete(s.expires, mailbox)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired digests", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored digests, expired or not
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type cleaner interface {
	Cleanup(ctx context.Context) error
}

// runCleanup periodically removes expired entries until stopCh is closed
func runCleanup(c cleaner, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up digest store", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
