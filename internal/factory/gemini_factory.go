package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/summarizer/gemini"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// GeminiFactory creates Gemini summarizers
type GeminiFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiFactory {
	return &GeminiFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates a Gemini summarizer
func (f *GeminiFactory) CreateSummarizer(ctx context.Context) (core.Summarizer, error) {
	geminiCfg := f.cfg.GetGemini()

	s, err := gemini.New(ctx, gemini.Options{
		APIKey:      geminiCfg.APIKey,
		ModelName:   geminiCfg.ModelName,
		MaxTokens:   geminiCfg.MaxTokens,
		Temperature: geminiCfg.Temperature,
		TopP:        geminiCfg.TopP,
		MaxBodySize: geminiCfg.MaxBodySize,
	}, f.logger, f.textProcessor)
	if err != nil {
		return nil, err
	}
	return s, nil
}
