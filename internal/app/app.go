// Package app wires configuration into the soil client, the recommendation
// generator and the advisor workflow. Both the API server and the CLI build
// their components here.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/advisor"
	"github.com/soiladvisor/soiladvisor/internal/auth"
	"github.com/soiladvisor/soiladvisor/internal/config"
	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
	"github.com/soiladvisor/soiladvisor/internal/recommend"
	"github.com/soiladvisor/soiladvisor/internal/recommend/anthropic"
	"github.com/soiladvisor/soiladvisor/internal/recommend/gemini"
	"github.com/soiladvisor/soiladvisor/internal/soil/isda"
)

// Components are the wired services.
type Components struct {
	Registry *resilience.Registry
	Soil     *isda.Client

	// Generator is nil when recommendations are not configured.
	Generator recommend.Generator

	Advisor *advisor.Service
}

// GeneratorName returns the configured generator name, or "" when none is set.
func (c *Components) GeneratorName() string {
	if c.Generator == nil {
		return ""
	}
	return c.Generator.Name()
}

// Build validates cfg and constructs the components. Soil credentials are
// always required. When requireLLM is false a missing or invalid LLM setup is
// logged and the advisor runs without a recommender.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, requireLLM bool) (*Components, error) {
	if err := cfg.ValidateSoil(); err != nil {
		return nil, err
	}

	registry := resilience.NewRegistry()

	soilHTTP := resilience.SingleAttemptConfig(isda.ProviderName, cfg.ISDATimeout)
	soilHTTP.Registry = registry
	soilHTTP.Logger = log
	soilClient := isda.NewClient(isda.ClientConfig{
		Username:   cfg.ISDAUsername,
		Password:   cfg.ISDAPassword,
		BaseURL:    cfg.ISDABaseURL,
		HTTPClient: resilience.NewClient(soilHTTP),
		Registry:   registry,
		LazyAuth:   cfg.ISDALazyAuth,
		Logger:     log,
	})

	c := &Components{
		Registry: registry,
		Soil:     soilClient,
	}

	advisorCfg := advisor.ServiceConfig{
		Provider: soilClient,
		Logger:   log.With().Str("component", "advisor").Logger(),
	}

	if err := cfg.ValidateLLM(); err != nil {
		if requireLLM {
			return nil, err
		}
		log.Warn().Err(err).Msg("recommendations disabled")
	} else {
		gen, err := NewGenerator(ctx, cfg, registry, log)
		if err != nil {
			return nil, err
		}
		c.Generator = gen
		advisorCfg.Recommender = recommend.NewService(recommend.ServiceConfig{
			Generator: gen,
			Registry:  registry,
			Logger:    log.With().Str("component", "recommend").Logger(),
		})
	}

	c.Advisor = advisor.NewService(advisorCfg)
	return c, nil
}

// NewGenerator builds the generator selected by LLM_PROVIDER. Its HTTP client
// is registered with registry under the provider name.
func NewGenerator(ctx context.Context, cfg *config.Config, registry *resilience.Registry, log zerolog.Logger) (recommend.Generator, error) {
	switch cfg.LLMProvider {
	case config.LLMProviderGemini:
		return gemini.NewClient(ctx, gemini.ClientConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			HTTPClient: llmClient(gemini.ProviderName, cfg, registry, log),
			Logger:     log.With().Str("generator", gemini.ProviderName).Logger(),
		})
	case config.LLMProviderAnthropic:
		return anthropic.NewClient(anthropic.ClientConfig{
			APIKey:     cfg.AnthropicAPIKey,
			Model:      cfg.AnthropicModel,
			HTTPClient: llmClient(anthropic.ProviderName, cfg, registry, log),
			Logger:     log.With().Str("generator", anthropic.ProviderName).Logger(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", config.ErrInvalidConfig, cfg.LLMProvider)
	}
}

func llmClient(name string, cfg *config.Config, registry *resilience.Registry, log zerolog.Logger) *resilience.Client {
	rc := resilience.SingleAttemptConfig(name, cfg.LLMTimeout)
	rc.Registry = registry
	rc.Logger = log
	return resilience.NewClient(rc)
}

// NewJWTService returns the API token service, or nil when no signing key is
// configured and the API runs unauthenticated.
func NewJWTService(cfg *config.Config) *auth.JWTService {
	if cfg.JWTSigningKey == "" {
		return nil
	}
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})
}
