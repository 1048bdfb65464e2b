// Package recommend turns a classified soil profile into a fertilizer
// recommendation using a text-generation backend.
package recommend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

// ErrRecommendationFailed matches every error returned by Service.Recommend.
var ErrRecommendationFailed = errors.New("recommendation failed")

var errEmptyResponse = errors.New("empty response")

// Generator produces text for a prompt. Implementations make a single
// attempt; failures are reported, never retried.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the backend name for logging.
	Name() string
}

// Error reports a failed generation. Its message is the backend's cause.
type Error struct {
	Generator string
	Err       error
}

func (e *Error) Error() string {
	return e.Generator + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRecommendationFailed) match.
func (e *Error) Is(target error) bool {
	return target == ErrRecommendationFailed
}

// ServiceConfig holds configuration for the recommendation service.
type ServiceConfig struct {
	// Generator is the text-generation backend (required).
	Generator Generator

	// Registry, when set, is stamped with each outcome under Generator.Name().
	Registry *resilience.Registry

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service builds prompts from soil profiles and asks the generator for advice.
type Service struct {
	generator Generator
	registry  *resilience.Registry
	logger    zerolog.Logger
}

// NewService creates a new recommendation service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		generator: cfg.Generator,
		registry:  cfg.Registry,
		logger:    cfg.Logger,
	}
}

// Generator returns the configured backend.
func (s *Service) Generator() Generator {
	return s.generator
}

// Recommend returns free-text fertilizer advice for the profile.
func (s *Service) Recommend(ctx context.Context, profile soil.Profile) (string, error) {
	prompt := BuildPrompt(profile)

	start := time.Now()
	text, err := s.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyResponse
	}
	if err != nil {
		if s.registry != nil {
			s.registry.RecordFailure(s.generator.Name(), err)
		}
		s.logger.Warn().
			Err(err).
			Str("generator", s.generator.Name()).
			Dur("duration", time.Since(start)).
			Msg("recommendation failed")
		return "", &Error{Generator: s.generator.Name(), Err: err}
	}

	if s.registry != nil {
		s.registry.RecordSuccess(s.generator.Name())
	}
	s.logger.Debug().
		Str("generator", s.generator.Name()).
		Dur("duration", time.Since(start)).
		Int("length", len(text)).
		Msg("recommendation generated")

	return text, nil
}
