package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soiladvisor/soiladvisor/internal/advisor"
	"github.com/soiladvisor/soiladvisor/internal/auth"
	"github.com/soiladvisor/soiladvisor/internal/config"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

const soilBody = `{"property": {
	"nitrogen_total": [{"value": {"value": 3.0, "unit": "g/kg"}, "depth": {"value": "0-20", "unit": "cm"}}],
	"phosphorous_extractable": [{"value": {"value": 60, "unit": "ppm"}, "depth": {"value": "0-20", "unit": "cm"}}],
	"potassium_extractable": [{"value": {"value": 20, "unit": "ppm"}, "depth": {"value": "0-20", "unit": "cm"}}]
}}`

// fakeISDA serves a login token and a fixed soil payload without pH.
func fakeISDA(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"access_token":"tok-1","token_type":"bearer"}`)
		case "/isdasoil/v2/soilproperty":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, soilBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// isolate runs the command in an empty directory with a clean environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"ISDA_USERNAME", "ISDA_PASSWORD", "ISDA_BASE_URL", "LLM_PROVIDER",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "API_JWT_SIGNING_KEY", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"classify", "recommend", "token"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestCoordinateCommands_Flags(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"classify", "recommend"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)

		for _, flag := range []string{"lat", "lon", "json"} {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%s should have --%s flag", name, flag)
		}
	}
}

func TestClassify_RequiresCoordinates(t *testing.T) {
	isolate(t)

	_, err := execute(t, "classify", "--lat", "1.5")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lon")
}

func TestClassify_RejectsInvalidCoordinate(t *testing.T) {
	isolate(t)

	_, err := execute(t, "classify", "--lat", "95", "--lon", "0")

	assert.ErrorIs(t, err, soil.ErrInvalidCoordinate)
}

func TestClassify_MissingCredentials(t *testing.T) {
	isolate(t)

	_, err := execute(t, "classify", "--lat", "-1.2921", "--lon", "36.8219")

	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "ISDA_USERNAME")
}

func TestClassify_Renders(t *testing.T) {
	isolate(t)
	server := fakeISDA(t)
	t.Setenv("ISDA_USERNAME", "agronomist")
	t.Setenv("ISDA_PASSWORD", "secret")
	t.Setenv("ISDA_BASE_URL", server.URL)

	out, err := execute(t, "classify", "--lat", "-1.2921", "--lon", "36.8219")
	require.NoError(t, err)

	assert.Contains(t, out, "Soil profile")
	assert.Contains(t, out, "Nitrogen (N)")
	assert.Contains(t, out, "3.0 g/kg")
	assert.Contains(t, out, "Moderate")
	assert.Contains(t, out, "60 mg/kg")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "not reported")
}

func TestClassify_JSON(t *testing.T) {
	isolate(t)
	server := fakeISDA(t)
	t.Setenv("ISDA_USERNAME", "agronomist")
	t.Setenv("ISDA_PASSWORD", "secret")
	t.Setenv("ISDA_BASE_URL", server.URL)

	out, err := execute(t, "classify", "--lat", "-1.2921", "--lon", "36.8219", "--json")
	require.NoError(t, err)

	var report advisor.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "isda", report.Provider)
	require.Len(t, report.Profile, 3)
	assert.Equal(t, soil.BandModerate, report.Profile[soil.Nitrogen].Band)
	assert.Equal(t, soil.BandHigh, report.Profile[soil.Phosphorus].Band)
	assert.Equal(t, soil.BandLow, report.Profile[soil.Potassium].Band)
	_, hasPH := report.Profile[soil.PH]
	assert.False(t, hasPH)
}

func TestRecommend_RequiresModelKey(t *testing.T) {
	isolate(t)
	t.Setenv("ISDA_USERNAME", "agronomist")
	t.Setenv("ISDA_PASSWORD", "secret")

	_, err := execute(t, "recommend", "--lat", "-1.2921", "--lon", "36.8219")

	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestToken_Issues(t *testing.T) {
	isolate(t)
	t.Setenv("API_JWT_SIGNING_KEY", "cli-test-signing-key")

	out, err := execute(t, "token", "--subject", "svc_field_app", "--ttl", "10m", "--scope", "soil:read")
	require.NoError(t, err)

	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "cli-test-signing-key",
		Issuer:     "soiladvisor",
		Audience:   "soiladvisor-api",
	})
	claims, err := svc.ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)

	assert.Equal(t, "svc_field_app", claims.Subject)
	assert.Equal(t, "soil:read", claims.Scope)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestToken_RequiresSigningKey(t *testing.T) {
	isolate(t)

	_, err := execute(t, "token", "--subject", "svc_field_app")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_JWT_SIGNING_KEY")
}

func TestRenderReport(t *testing.T) {
	report := &advisor.Report{
		Coordinate: soil.Coordinate{Latitude: -1.2921, Longitude: 36.8219},
		Provider:   "isda",
		Profile: soil.Profile{
			soil.PH: {Property: soil.PH, Raw: `"abc"`, Band: soil.BandUnknown},
		},
	}

	t.Run("recommendation", func(t *testing.T) {
		r := *report
		r.Recommendation = "Apply Lime."

		out := renderReport(&r)

		assert.Contains(t, out, "-1.2921, 36.8219")
		assert.Contains(t, out, "abc")
		assert.Contains(t, out, "Unknown")
		assert.Contains(t, out, "Recommendation")
		assert.Contains(t, out, "Apply Lime.")
	})

	t.Run("recommendation error", func(t *testing.T) {
		r := *report
		r.RecommendationError = advisor.RecommendationErrorPrefix + "gemini: rate limited"

		out := renderReport(&r)

		assert.Contains(t, out, "Error generating recommendation: gemini: rate limited")
		assert.NotContains(t, out, "Recommendation\n")
	})
}
