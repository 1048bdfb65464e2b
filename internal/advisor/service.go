// Package advisor runs the soil advice workflow: fetch the raw soil
// properties for a coordinate, classify them, and ask for a fertilizer
// recommendation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/soil"
)

// Stage names a step of the workflow.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageRecommend Stage = "recommend"
)

// RecommendationErrorPrefix starts every Report.RecommendationError.
const RecommendationErrorPrefix = "Error generating recommendation: "

// ErrNoRecommender is returned by Advise when no recommender is configured.
var ErrNoRecommender = errors.New("no recommender configured")

// StageError labels a workflow failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Recommender produces fertilizer advice for a classified profile.
type Recommender interface {
	Recommend(ctx context.Context, profile soil.Profile) (string, error)
}

// Report is the outcome of a workflow run. When only the recommendation
// fails, the report still carries the profile and RecommendationError is set;
// Recommendation is then empty.
type Report struct {
	Coordinate          soil.Coordinate `json:"coordinate"`
	Provider            string          `json:"provider"`
	Profile             soil.Profile    `json:"profile"`
	Recommendation      string          `json:"recommendation,omitempty"`
	RecommendationError string          `json:"recommendationError,omitempty"`
	GeneratedAt         time.Time       `json:"generatedAt"`

	// FetchDuration and RecommendDuration time each stage on its own.
	// RecommendDuration is zero when no recommendation was attempted.
	FetchDuration     time.Duration `json:"-"`
	RecommendDuration time.Duration `json:"-"`
}

// HasRecommendation reports whether the report carries advice text.
func (r *Report) HasRecommendation() bool {
	return r.Recommendation != ""
}

// ServiceConfig holds configuration for the advisor service.
type ServiceConfig struct {
	// Provider fetches raw soil properties (required).
	Provider soil.Provider

	// Recommender produces advice (required for Advise).
	Recommender Recommender

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service runs the workflow. It holds no per-request state.
type Service struct {
	provider    soil.Provider
	recommender Recommender
	logger      zerolog.Logger
}

// NewService creates a new advisor service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider:    cfg.Provider,
		recommender: cfg.Recommender,
		logger:      cfg.Logger,
	}
}

// Classify fetches and classifies the soil at coord.
func (s *Service) Classify(ctx context.Context, coord soil.Coordinate) (*Report, error) {
	start := time.Now()
	payload, err := s.provider.FetchSoilProperties(ctx, coord)
	fetched := time.Since(start)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", s.provider.Name()).
			Float64("lat", coord.Latitude).
			Float64("lon", coord.Longitude).
			Msg("soil fetch failed")
		return nil, &StageError{Stage: StageFetch, Err: err}
	}

	profile := soil.ClassifySoilData(payload)

	s.logger.Debug().
		Float64("lat", coord.Latitude).
		Float64("lon", coord.Longitude).
		Int("properties", len(profile)).
		Msg("soil classified")

	return &Report{
		Coordinate:    coord,
		Provider:      s.provider.Name(),
		Profile:       profile,
		GeneratedAt:   time.Now().UTC(),
		FetchDuration: fetched,
	}, nil
}

// Advise runs the full workflow. A fetch failure is returned as a
// *StageError. A recommendation failure is not: the report is returned with
// RecommendationError set so the classification is not lost.
func (s *Service) Advise(ctx context.Context, coord soil.Coordinate) (*Report, error) {
	if s.recommender == nil {
		return nil, &StageError{Stage: StageRecommend, Err: ErrNoRecommender}
	}

	report, err := s.Classify(ctx, coord)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.recommender.Recommend(ctx, report.Profile)
	report.RecommendDuration = time.Since(start)
	if err != nil {
		report.RecommendationError = RecommendationErrorPrefix + err.Error()
		return report, nil
	}

	report.Recommendation = text
	return report, nil
}
