package recommend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
	"github.com/soiladvisor/soiladvisor/internal/recommend"
	"github.com/soiladvisor/soiladvisor/internal/recommend/anthropic"
)

func registryWith(name string) *resilience.Registry {
	registry := resilience.NewRegistry()
	cfg := resilience.SingleAttemptConfig(name, time.Second)
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)
	return registry
}

func TestService_Recommend_StampsRegistryOnSuccess(t *testing.T) {
	registry := registryWith("mock")

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("Apply Urea.", nil).Once()

	svc := recommend.NewService(recommend.ServiceConfig{Generator: gen, Registry: registry, Logger: zerolog.Nop()})

	_, err := svc.Recommend(context.Background(), sampleProfile())
	require.NoError(t, err)

	health := registry.GetHealth("mock")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
	assert.Zero(t, health.ConsecutiveFailures)
}

func TestService_Recommend_StampsRegistryOnFailure(t *testing.T) {
	registry := registryWith("mock")

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("   ", nil).Twice()

	svc := recommend.NewService(recommend.ServiceConfig{Generator: gen, Registry: registry, Logger: zerolog.Nop()})

	for range 2 {
		_, err := svc.Recommend(context.Background(), sampleProfile())
		require.Error(t, err)
	}

	health := registry.GetHealth("mock")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "empty response", health.LastError)
	assert.Equal(t, uint32(2), health.ConsecutiveFailures)
	assert.True(t, health.IsDegraded())
}

func TestService_Recommend_WithoutRegistry(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("Apply Urea.", nil).Once()

	svc := recommend.NewService(recommend.ServiceConfig{Generator: gen, Logger: zerolog.Nop()})

	text, err := svc.Recommend(context.Background(), sampleProfile())
	require.NoError(t, err)
	assert.Equal(t, "Apply Urea.", text)
}

func TestService_Recommend_AnthropicShowsInProviderHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_test_002",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "Use urea"}},
			"model":       anthropic.DefaultModel,
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 80, "output_tokens": 3},
		})
	}))
	defer ts.Close()

	registry := resilience.NewRegistry()
	httpCfg := resilience.SingleAttemptConfig(anthropic.ProviderName, time.Second)
	httpCfg.Registry = registry

	client, err := anthropic.NewClient(anthropic.ClientConfig{
		APIKey:     "test-key",
		BaseURL:    ts.URL,
		HTTPClient: resilience.NewClient(httpCfg),
	})
	require.NoError(t, err)

	svc := recommend.NewService(recommend.ServiceConfig{Generator: client, Registry: registry, Logger: zerolog.Nop()})

	text, err := svc.Recommend(context.Background(), sampleProfile())
	require.NoError(t, err)
	assert.Equal(t, "Use urea", text)

	health := registry.GetHealth(anthropic.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.True(t, health.IsHealthy())
}
