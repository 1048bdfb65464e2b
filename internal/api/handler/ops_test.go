package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soiladvisor/soiladvisor/internal/api/handler"
	"github.com/soiladvisor/soiladvisor/internal/api/models"
	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
)

// trippingClient returns a client whose circuit opens after one failure.
func trippingClient(registry *resilience.Registry, name string) *resilience.Client {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 }

	cfg := resilience.SingleAttemptConfig(name, time.Second)
	cfg.CircuitBreaker = &cb
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

// failOnce sends one request that fails with a 500 and records the failure
// the way the soil client does.
func failOnce(t *testing.T, registry *resilience.Registry, client *resilience.Client) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	registry.RecordFailure(client.Name(), &resilience.ServerError{StatusCode: resp.StatusCode})
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.2.3", BuildTime: "2026-01-01T00:00:00Z"})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.2.3", health.Details["version"])
}

func TestOpsHandler_SystemStatus_Healthy(t *testing.T) {
	registry := resilience.NewRegistry()
	trippingClient(registry, "isda")
	registry.RecordSuccess("isda")

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry, Generator: "gemini"})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, "gemini", status.Generator)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "isda", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	assert.NotNil(t, status.Providers[0].LastSuccessAt)
}

func TestOpsHandler_SystemStatus_Degraded(t *testing.T) {
	registry := resilience.NewRegistry()
	soilClient := trippingClient(registry, "isda")
	trippingClient(registry, "gemini")

	failOnce(t, registry, soilClient)

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)

	require.Len(t, status.Providers, 2)
	// sorted by name
	assert.Equal(t, "gemini", status.Providers[0].Provider)
	assert.Equal(t, "isda", status.Providers[1].Provider)
	assert.Equal(t, models.HealthStatusFail, status.Providers[1].Status)
	assert.Equal(t, "open", status.Providers[1].CircuitState)
	assert.Equal(t, uint32(1), status.Providers[1].ConsecutiveFailures)
}

func TestOpsHandler_ReadinessCheck(t *testing.T) {
	registry := resilience.NewRegistry()
	soilClient := trippingClient(registry, "isda")

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	failOnce(t, registry, soilClient)

	rec = httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
}

func TestOpsHandler_ProviderStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	soilClient := trippingClient(registry, "isda")
	trippingClient(registry, "gemini")
	failOnce(t, registry, soilClient)

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})
	router := chi.NewRouter()
	router.Get("/v1/ops/status/{provider}", h.ProviderStatus)

	t.Run("failing provider", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status/isda", http.NoBody))

		require.Equal(t, http.StatusOK, rec.Code)
		var status models.ProviderStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "isda", status.Provider)
		assert.Equal(t, models.HealthStatusFail, status.Status)
		assert.Equal(t, uint32(1), status.ConsecutiveFailures)
		require.NotNil(t, status.Message)
		assert.Contains(t, *status.Message, "Internal Server Error")
	})

	t.Run("healthy provider", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status/gemini", http.NoBody))

		require.Equal(t, http.StatusOK, rec.Code)
		var status models.ProviderStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, models.HealthStatusOK, status.Status)
		assert.Zero(t, status.ConsecutiveFailures)
	})

	t.Run("unknown provider", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status/openai", http.NoBody))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})
}

func TestOpsHandler_SystemStatus_RecoversAfterSuccess(t *testing.T) {
	registry := resilience.NewRegistry()
	soilClient := trippingClient(registry, "isda")
	failOnce(t, registry, soilClient)
	registry.RecordSuccess("isda")

	h := handler.NewOpsHandler(handler.OpsConfig{Registry: registry})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Providers, 1)
	assert.Zero(t, status.Providers[0].ConsecutiveFailures)
	assert.Equal(t, "open", status.Providers[0].CircuitState)
	assert.Equal(t, models.HealthStatusFail, status.Providers[0].Status)
}
