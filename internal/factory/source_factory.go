package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/graph"
	"github.com/mikey/mail-priority/internal/adapters/mailfile"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
)

// Sources bundles the message source with the optional calendar source
type Sources struct {
	Messages core.MessageSource
	Events   core.EventSource
}

// SourceFactory creates message and event sources based on configuration
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSources creates the configured sources. Only Microsoft Graph
// provides calendar events.
func (f *SourceFactory) CreateSources(ctx context.Context) (Sources, error) {
	sourceCfg := f.cfg.GetSource()
	logger := f.logger.Named("source").With(zap.String("type", sourceCfg.Type))

	switch sourceCfg.Type {
	case "graph":
		graphCfg, err := f.cfg.GetGraph()
		if err != nil {
			return Sources{}, fmt.Errorf("invalid graph configuration: %w", err)
		}
		ts, err := graph.NewClientSecretTokenSource(ctx, graphCfg.TenantID, graphCfg.ClientID, graphCfg.ClientSecret)
		if err != nil {
			return Sources{}, err
		}
		client := graph.NewClient(ts, graph.Options{
			BaseURL:     graphCfg.BaseURL,
			User:        graphCfg.User,
			PageSize:    graphCfg.PageSize,
			MaxPages:    graphCfg.MaxPages,
			Timeout:     graphCfg.Timeout,
			MaxFailures: graphCfg.MaxFailures,
			OpenTimeout: graphCfg.OpenTimeout,
		}, logger)
		return Sources{Messages: client, Events: client}, nil
	case "files":
		src, err := mailfile.NewSource(sourceCfg.Path, logger)
		if err != nil {
			return Sources{}, err
		}
		return Sources{Messages: src}, nil
	default:
		return Sources{}, fmt.Errorf("unsupported source type: %s", sourceCfg.Type)
	}
}
