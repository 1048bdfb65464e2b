// Package handler provides HTTP handlers for the soil advisor API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soiladvisor/soiladvisor/internal/api/models"
	"github.com/soiladvisor/soiladvisor/internal/api/response"
	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
)

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports provider circuit state (optional).
	Registry *resilience.Registry

	// Generator is the configured recommendation backend name.
	Generator string
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	generator string
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		generator: cfg.Generator,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// not ready while every registered provider has an open circuit.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.overall(h.providers())

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if status == models.HealthStatusFail {
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider circuit status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providers()
	status := models.SystemStatus{
		Status:    h.overall(providers),
		Time:      models.Timestamp(time.Now()),
		Generator: h.generator,
		Providers: providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

// ProviderStatus handles GET /v1/ops/status/{provider} - one provider's circuit status.
func (h *OpsHandler) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")

	var ph *resilience.ProviderHealth
	if h.registry != nil {
		ph = h.registry.GetHealth(name)
	}
	if ph == nil {
		response.NotFound(w, r, "no provider named "+name)
		return
	}
	response.JSON(w, r, http.StatusOK, toProviderStatus(ph))
}

// providers lists every registered provider, ordered by name.
func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		out = append(out, toProviderStatus(ph))
	}
	return out
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              providerStatus(ph),
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.ConsecutiveFailures,
		LastSuccessAt:       timestampPtr(ph.LastSuccessAt),
		LastFailureAt:       timestampPtr(ph.LastFailureAt),
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// overall is FAIL when every provider is failing, DEGRADED when some are.
func (h *OpsHandler) overall(providers []models.ProviderStatus) models.HealthStatus {
	if len(providers) == 0 {
		return models.HealthStatusOK
	}

	failing, degraded := 0, 0
	for _, p := range providers {
		switch p.Status {
		case models.HealthStatusFail:
			failing++
		case models.HealthStatusDegraded:
			degraded++
		}
	}

	switch {
	case failing == len(providers):
		return models.HealthStatusFail
	case failing > 0 || degraded > 0:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func providerStatus(ph *resilience.ProviderHealth) models.HealthStatus {
	switch {
	case ph.IsHealthy():
		return models.HealthStatusOK
	case ph.IsUnhealthy():
		return models.HealthStatusFail
	default:
		return models.HealthStatusDegraded
	}
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
