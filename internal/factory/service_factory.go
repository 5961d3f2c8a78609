package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/rules"
)

// ServiceFactory assembles the priority service from its collaborators
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateScorer creates a scorer with the configured weights
func (f *ServiceFactory) CreateScorer() (*core.Scorer, error) {
	weights, err := f.cfg.GetScoring()
	if err != nil {
		return nil, fmt.Errorf("invalid scoring configuration: %w", err)
	}
	return core.NewScorer(weights, f.logger.Named("scorer"))
}

// CreateService creates the priority service. store and summarizer may be nil.
func (f *ServiceFactory) CreateService(
	scorer *core.Scorer,
	sources Sources,
	store core.DigestStore,
	summarizer core.Summarizer,
) (*core.PriorityService, error) {
	senderRules, err := rules.FromConfig(f.cfg, f.logger)
	if err != nil {
		return nil, err
	}

	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	sourceCfg := f.cfg.GetSource()
	sourceName := sourceCfg.Type
	if sourceCfg.Path != "" {
		sourceName += ":" + sourceCfg.Path
	}

	return core.NewPriorityService(scorer, sources.Messages, store, f.logger.Named("service"), core.ServiceOptions{
		Rules:        senderRules,
		CacheEnabled: cacheCfg.Enabled && store != nil,
		CacheTTL:     cacheCfg.TTL,
		Events:       sources.Events,
		Summarizer:   summarizer,
		SourceName:   sourceName,
	}), nil
}
