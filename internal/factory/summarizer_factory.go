package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// SummarizerFactory creates the briefing summarizer for the configured provider
type SummarizerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSummarizerFactory creates a new summarizer factory
func NewSummarizerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SummarizerFactory {
	return &SummarizerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer returns nil with no error when summaries are disabled
func (f *SummarizerFactory) CreateSummarizer(ctx context.Context) (core.Summarizer, error) {
	provider := f.cfg.GetLLM().Provider
	logger := f.logger.Named("summarizer").With(zap.String("provider", provider))

	switch provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		return NewBedrockFactory(f.cfg, logger, f.textProcessor).CreateSummarizer(ctx)
	case "gemini":
		return NewGeminiFactory(f.cfg, logger, f.textProcessor).CreateSummarizer(ctx)
	case "openai":
		return NewOpenAIFactory(f.cfg, logger, f.textProcessor).CreateSummarizer()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
