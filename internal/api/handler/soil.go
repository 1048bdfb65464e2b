package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/soiladvisor/soiladvisor/internal/advisor"
	"github.com/soiladvisor/soiladvisor/internal/api/middleware"
	"github.com/soiladvisor/soiladvisor/internal/api/models"
	"github.com/soiladvisor/soiladvisor/internal/api/response"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

// Advisor runs the soil workflow for a coordinate.
type Advisor interface {
	Classify(ctx context.Context, coord soil.Coordinate) (*advisor.Report, error)
	Advise(ctx context.Context, coord soil.Coordinate) (*advisor.Report, error)
}

// MetricsRecorder records backend calls and classification bands.
// *middleware.ProviderMetrics implements it.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordBand(property, band string)
}

// unconfiguredGenerator labels recommendation metrics when no generator is set.
const unconfiguredGenerator = "none"

// SoilHandlerConfig holds configuration for the soil handler.
type SoilHandlerConfig struct {
	// Advisor runs the workflow (required).
	Advisor Advisor

	// Provider and Generator name the backends for metrics and responses.
	Provider  string
	Generator string

	// Metrics records backend calls (optional).
	Metrics MetricsRecorder

	// Logger for handler operations.
	Logger zerolog.Logger
}

// SoilHandler handles classification and recommendation endpoints.
type SoilHandler struct {
	advisor   Advisor
	provider  string
	generator string
	metrics   MetricsRecorder
	logger    zerolog.Logger
}

// NewSoilHandler creates a new SoilHandler.
func NewSoilHandler(cfg SoilHandlerConfig) *SoilHandler {
	generator := cfg.Generator
	if generator == "" {
		generator = unconfiguredGenerator
	}
	return &SoilHandler{
		advisor:   cfg.Advisor,
		provider:  cfg.Provider,
		generator: generator,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// GetClassification handles GET /v1/soil/classification?lat=&lon= - classify the topsoil at a point.
func (h *SoilHandler) GetClassification(w http.ResponseWriter, r *http.Request) {
	point, fieldErrs := pointFromQuery(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid coordinate", fieldErrs)
		return
	}

	start := time.Now()
	report, err := h.advisor.Classify(r.Context(), toCoordinate(point))
	if err != nil {
		h.record(h.provider, "classify", time.Since(start), err)
		h.writeError(w, r, err)
		return
	}
	h.record(h.provider, "classify", report.FetchDuration, nil)
	h.recordBands(report.Profile)

	response.JSON(w, r, http.StatusOK, classificationResponse(point, report))
}

// CreateRecommendation handles POST /v1/recommendations - classify and recommend fertilizers.
func (h *SoilHandler) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	var input models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrs []models.FieldError
	if input.Lat == nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "required", Code: "REQUIRED"})
	}
	if input.Lon == nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lon", Message: "required", Code: "REQUIRED"})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "lat and lon are required", fieldErrs)
		return
	}

	point := models.Point{Lat: *input.Lat, Lon: *input.Lon}
	if errs := point.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid coordinate", errs)
		return
	}

	start := time.Now()
	report, err := h.advisor.Advise(r.Context(), toCoordinate(point))
	if err != nil {
		h.recordStageError(err, time.Since(start))
		h.writeError(w, r, err)
		return
	}
	h.record(h.provider, "fetch", report.FetchDuration, nil)
	h.recordBands(report.Profile)

	var recErr error
	if report.RecommendationError != "" {
		recErr = errors.New(report.RecommendationError)
	}
	h.record(h.generator, "recommend", report.RecommendDuration, recErr)

	response.JSON(w, r, http.StatusOK, models.RecommendationResponse{
		ClassificationResponse: classificationResponse(point, report),
		Generator:              h.generator,
		Recommendation:         report.Recommendation,
		RecommendationError:    report.RecommendationError,
	})
}

func (h *SoilHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg("soil request failed")

	switch {
	case errors.Is(err, advisor.ErrNoRecommender):
		response.ServiceUnavailable(w, r, "recommendations are not configured")
	case errors.Is(err, soil.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "soil provider temporarily unavailable")
	case errors.Is(err, soil.ErrAuthFailed):
		response.BadGateway(w, r, "soil provider authentication failed")
	case errors.Is(err, soil.ErrFetchFailed):
		response.BadGateway(w, r, "soil property lookup failed")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func (h *SoilHandler) record(backend, operation string, duration time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(backend, operation, duration, err)
}

// recordStageError charges a failed Advise call to the backend of the stage
// that failed. Unlabelled errors count against the soil provider.
func (h *SoilHandler) recordStageError(err error, elapsed time.Duration) {
	var stageErr *advisor.StageError
	if errors.As(err, &stageErr) && stageErr.Stage == advisor.StageRecommend {
		h.record(h.generator, "recommend", elapsed, err)
		return
	}
	h.record(h.provider, "fetch", elapsed, err)
}

func (h *SoilHandler) recordBands(profile soil.Profile) {
	if h.metrics == nil {
		return
	}
	for _, c := range profile.Ordered() {
		h.metrics.RecordBand(string(c.Property), string(c.Band))
	}
}

// pointFromQuery parses and validates the lat and lon query parameters.
func pointFromQuery(r *http.Request) (models.Point, []models.FieldError) {
	var (
		point models.Point
		errs  []models.FieldError
	)

	parse := func(name string, dst *float64) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			errs = append(errs, models.FieldError{Field: name, Message: "required", Code: "REQUIRED"})
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: name, Message: "must be a number", Code: "INVALID"})
			return
		}
		*dst = v
	}
	parse("lat", &point.Lat)
	parse("lon", &point.Lon)

	if len(errs) > 0 {
		return point, errs
	}
	return point, point.Validate()
}

func toCoordinate(p models.Point) soil.Coordinate {
	return soil.Coordinate{Latitude: p.Lat, Longitude: p.Lon}
}

func classificationResponse(point models.Point, report *advisor.Report) models.ClassificationResponse {
	props := make([]models.PropertyResult, 0, len(report.Profile))
	for _, c := range report.Profile.Ordered() {
		props = append(props, models.PropertyResult{
			Property:       string(c.Property),
			Label:          c.Property.Label(),
			Value:          c.Value,
			Raw:            c.Raw,
			Unit:           c.Property.Unit(),
			Classification: string(c.Band),
		})
	}

	return models.ClassificationResponse{
		Location:    point,
		Provider:    report.Provider,
		Properties:  props,
		GeneratedAt: models.Timestamp(report.GeneratedAt),
	}
}
