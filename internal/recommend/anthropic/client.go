// Package anthropic implements a recommend.Generator backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
)

const (
	// ProviderName identifies this generator.
	ProviderName = "anthropic"

	// DefaultModel is the Claude model used when none is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"

	// DefaultMaxTokens caps the length of a recommendation.
	DefaultMaxTokens = 2048

	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: API key is required")

// ClientConfig holds configuration for the Anthropic client.
type ClientConfig struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// Model is the model name (optional, defaults to DefaultModel).
	Model string

	// MaxTokens caps the response length (optional, defaults to DefaultMaxTokens).
	MaxTokens int64

	// BaseURL overrides the API endpoint (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a single-attempt resilient client with DefaultTimeout is used.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client generates text with the Anthropic Messages API.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
	logger    zerolog.Logger
}

// NewClient creates a new Anthropic client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SingleAttemptConfig(ProviderName, DefaultTimeout))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient.HTTPClient()),
		// Retries are owned by the resilience client.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    cfg.Logger,
	}, nil
}

// Name returns the generator name.
func (c *Client) Name() string {
	return ProviderName
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("response contained no text (stop reason %q)", msg.StopReason)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("anthropic message generated")

	return text, nil
}
