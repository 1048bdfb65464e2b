// Package gemini implements a recommend.Generator backed by Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
)

const (
	// ProviderName identifies this generator.
	ProviderName = "gemini"

	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: API key is required")

// ClientConfig holds configuration for the Gemini client.
type ClientConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model name (optional, defaults to DefaultModel).
	Model string

	// BaseURL overrides the Gemini API endpoint (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a single-attempt resilient client with DefaultTimeout is used.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client generates text with the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SingleAttemptConfig(ProviderName, DefaultTimeout))
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient.HTTPClient(),
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  model,
		logger: cfg.Logger,
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

// Generate sends the prompt as a single user turn and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("response contained no text")
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("candidates", len(resp.Candidates)).
		Msg("gemini content generated")

	return text, nil
}
