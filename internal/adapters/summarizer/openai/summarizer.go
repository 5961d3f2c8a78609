package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/summarizer"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// Options configures the OpenAI summarizer
type Options struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// Summarizer writes briefings with the OpenAI chat completion API
type Summarizer struct {
	client        *openai.Client
	opts          Options
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// New creates a new OpenAI summarizer. BaseURL is optional and points the
// client at an OpenAI compatible endpoint.
func New(opts Options, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return NewWithClient(openai.NewClientWithConfig(cfg), opts, logger, textProcessor)
}

// NewWithClient creates a summarizer around an existing client
func NewWithClient(client *openai.Client, opts Options, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	return &Summarizer{
		client:        client,
		opts:          opts,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Summarize implements core.Summarizer
func (s *Summarizer) Summarize(ctx context.Context, b *core.Briefing) (string, error) {
	prompt := summarizer.BuildPrompt(b, s.textProcessor, s.opts.MaxBodySize)

	req := openai.ChatCompletionRequest{
		Model: s.opts.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: summarizer.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", summarizer.ErrEmptyResponse)
	}

	s.logger.Debug("OpenAI briefing generated",
		zap.String("model", s.opts.ModelName),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return summarizer.CleanResponse(resp.Choices[0].Message.Content)
}
