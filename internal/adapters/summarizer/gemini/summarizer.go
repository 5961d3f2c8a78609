package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/mail-priority/internal/adapters/summarizer"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// Options configures the Gemini summarizer
type Options struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// Summarizer writes briefings with Google Gemini
type Summarizer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	opts          Options
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// New creates a new Gemini summarizer
func New(ctx context.Context, opts Options, logger *zap.Logger, textProcessor *utils.TextProcessor) (*Summarizer, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.ModelName)
	model.SetTemperature(opts.Temperature)
	model.SetTopP(opts.TopP)
	model.SetMaxOutputTokens(int32(opts.MaxTokens))
	model.SystemInstruction = genai.NewUserContent(genai.Text(summarizer.SystemPrompt))

	return &Summarizer{
		client:        client,
		model:         model,
		opts:          opts,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Summarize implements core.Summarizer
func (s *Summarizer) Summarize(ctx context.Context, b *core.Briefing) (string, error) {
	prompt := summarizer.BuildPrompt(b, s.textProcessor, s.opts.MaxBodySize)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: %w", summarizer.ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	s.logger.Debug("Gemini briefing generated", zap.String("model", s.opts.ModelName))
	return summarizer.CleanResponse(text.String())
}
