package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/store"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/ports"
)

// StoreFactory creates digest stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateDigestStore creates a digest store based on the configuration
func (f *StoreFactory) CreateDigestStore(ctx context.Context) (ports.DigestStore, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}
	logger := f.logger.Named("store").With(zap.String("type", cacheCfg.Type))

	var s ports.DigestStore
	switch cacheCfg.Type {
	case "memory":
		s = store.NewMemoryStore(logger, cacheCfg.CleanupFrequency)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		s, err = store.NewSQLiteStore(cacheCfg.SQLitePath, logger, cacheCfg.CleanupFrequency)
	case "mysql":
		s, err = store.NewMySQLStore(cacheCfg.MySQLDSN, logger, cacheCfg.CleanupFrequency)
	case "redis":
		s, err = store.NewRedisStore(ctx, cacheCfg.RedisURL, logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
