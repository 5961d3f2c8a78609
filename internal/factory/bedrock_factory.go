package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/summarizer/bedrock"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// BedrockFactory creates Bedrock summarizers
type BedrockFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewBedrockFactory creates a new Bedrock factory
func NewBedrockFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *BedrockFactory {
	return &BedrockFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer loads the AWS configuration and creates a Bedrock summarizer
func (f *BedrockFactory) CreateSummarizer(ctx context.Context) (core.Summarizer, error) {
	bedrockCfg := f.cfg.GetBedrock()

	s, err := bedrock.New(ctx, bedrock.Options{
		Region:      bedrockCfg.Region,
		ModelID:     bedrockCfg.ModelID,
		MaxTokens:   bedrockCfg.MaxTokens,
		Temperature: bedrockCfg.Temperature,
		TopP:        bedrockCfg.TopP,
		MaxBodySize: bedrockCfg.MaxBodySize,
	}, f.logger, f.textProcessor)
	if err != nil {
		return nil, err
	}
	return s, nil
}
