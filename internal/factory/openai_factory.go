package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/summarizer/openai"
	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// OpenAIFactory creates OpenAI summarizers
type OpenAIFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSummarizer creates an OpenAI summarizer
func (f *OpenAIFactory) CreateSummarizer() (core.Summarizer, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return openai.New(openai.Options{
		APIKey:      openaiCfg.APIKey,
		BaseURL:     openaiCfg.BaseURL,
		ModelName:   openaiCfg.ModelName,
		MaxTokens:   openaiCfg.MaxTokens,
		Temperature: openaiCfg.Temperature,
		TopP:        openaiCfg.TopP,
		MaxBodySize: openaiCfg.MaxBodySize,
	}, f.logger, f.textProcessor), nil
}
