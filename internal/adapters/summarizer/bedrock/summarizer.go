package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/adapters/summarizer"
	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

const anthropicVersion = "bedrock-2023-05-31"

// Options configures the Bedrock summarizer
type Options struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// InvokeModelAPI is the part of the Bedrock runtime client the summarizer uses
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Summarizer writes briefings with a model hosted on Amazon Bedrock
type Summarizer struct {
	client        InvokeModelAPI
	opts          Options
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// New loads the default AWS configuration for the region and creates a summarizer
func New(ctx context.Context, opts Options, logger *zap.Logger, textProcessor *utils.TextProcessor) (*Summarizer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewWithClient(bedrockruntime.NewFromConfig(awsCfg), opts, logger, textProcessor), nil
}

// NewWithClient creates a summarizer around an existing runtime client
func NewWithClient(client InvokeModelAPI, opts Options, logger *zap.Logger, textProcessor *utils.TextProcessor) *Summarizer {
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

func (s *Summarizer) isAnthropicModel() bool {
	return strings.Contains(s.opts.ModelID, "anthropic.")
}

func (s *Summarizer) isAmazonTitanModel() bool {
	return strings.Contains(s.opts.ModelID, "amazon.titan")
}

// Summarize implements core.Summarizer
func (s *Summarizer) Summarize(ctx context.Context, b *core.Briefing) (string, error) {
	prompt := summarizer.BuildPrompt(b, s.textProcessor, s.opts.MaxBodySize)

	payload, err := s.requestBody(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.opts.ModelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := s.responseText(resp.Body)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Bedrock briefing generated", zap.String("model", s.opts.ModelID))
	return summarizer.CleanResponse(text)
}

func (s *Summarizer) requestBody(prompt string) ([]byte, error) {
	switch {
	case s.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        s.opts.MaxTokens,
			"system":            summarizer.SystemPrompt,
			"temperature":       s.opts.Temperature,
			"top_p":             s.opts.TopP,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		})
	case s.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": summarizer.SystemPrompt + "\n\n" + prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.opts.MaxTokens,
				"temperature":   s.opts.Temperature,
				"topP":          s.opts.TopP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      summarizer.SystemPrompt + "\n\n" + prompt,
			"max_tokens":  s.opts.MaxTokens,
			"temperature": s.opts.Temperature,
			"top_p":       s.opts.TopP,
		})
	}
}

func (s *Summarizer) responseText(body []byte) (string, error) {
	switch {
	case s.isAnthropicModel():
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Anthropic response: %w", err)
		}
		var text strings.Builder
		for _, c := range resp.Content {
			if c.Type == "text" {
				text.WriteString(c.Text)
			}
		}
		return text.String(), nil
	case s.isAmazonTitanModel():
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", fmt.Errorf("titan: %w", summarizer.ErrEmptyResponse)
		}
		return resp.Results[0].OutputText, nil
	default:
		var resp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, v := range []string{resp.Output, resp.Text, resp.Generation} {
			if v != "" {
				return v, nil
			}
		}
		return string(body), nil
	}
}
