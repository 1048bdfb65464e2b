// Package config loads application configuration from the environment and
// an optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Configuration errors.
var (
	ErrMissingCredentials = errors.New("missing required credentials")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// LLM provider names.
const (
	LLMProviderGemini    = "gemini"
	LLMProviderAnthropic = "anthropic"
)

// Config holds the application configuration. Keys are the lower-cased
// environment variable names.
type Config struct {
	ISDAUsername string        `mapstructure:"isda_username"`
	ISDAPassword string        `mapstructure:"isda_password"`
	ISDABaseURL  string        `mapstructure:"isda_base_url"`
	ISDATimeout  time.Duration `mapstructure:"isda_timeout"`
	ISDALazyAuth bool          `mapstructure:"isda_lazy_auth"`

	LLMProvider     string        `mapstructure:"llm_provider"`
	LLMTimeout      time.Duration `mapstructure:"llm_timeout"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	GeminiModel     string        `mapstructure:"gemini_model"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`

	Port        string `mapstructure:"app_port"`
	Environment string `mapstructure:"app_env"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	OTelEnabled     bool    `mapstructure:"otel_enabled"`
	OTLPEndpoint    string  `mapstructure:"otel_exporter_otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otel_exporter_otlp_insecure"`
	OTelSampleRatio float64 `mapstructure:"otel_sample_ratio"`

	JWTSigningKey string `mapstructure:"api_jwt_signing_key"`
	JWTIssuer     string `mapstructure:"api_jwt_issuer"`
	JWTAudience   string `mapstructure:"api_jwt_audience"`
	RequireTLS    bool   `mapstructure:"require_tls"`
}

var defaults = map[string]any{
	"isda_username":               "",
	"isda_password":               "",
	"isda_base_url":               "https://api.isda-africa.com",
	"isda_timeout":                15 * time.Second,
	"isda_lazy_auth":              false,
	"llm_provider":                LLMProviderGemini,
	"llm_timeout":                 60 * time.Second,
	"gemini_api_key":              "",
	"gemini_model":                "gemini-2.5-flash",
	"anthropic_api_key":           "",
	"anthropic_model":             "claude-sonnet-4-5-20250929",
	"app_port":                    "8080",
	"app_env":                     "development",
	"log_level":                   "info",
	"log_format":                  "json",
	"otel_enabled":                false,
	"otel_exporter_otlp_endpoint": "localhost:4317",
	"otel_exporter_otlp_insecure": true,
	"otel_sample_ratio":           1.0,
	"api_jwt_signing_key":         "",
	"api_jwt_issuer":              "soiladvisor",
	"api_jwt_audience":            "soiladvisor-api",
	"require_tls":                 false,
}

// Load reads configuration from the environment, layered over envFile.
// An empty envFile means DefaultEnvFile, which may be absent; an explicitly
// named file must exist. Environment variables take precedence over the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if envFile != "" {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	return &cfg, nil
}

// ValidateSoil checks the iSDAsoil credentials.
func (c *Config) ValidateSoil() error {
	var missing []string
	if c.ISDAUsername == "" {
		missing = append(missing, "ISDA_USERNAME")
	}
	if c.ISDAPassword == "" {
		missing = append(missing, "ISDA_PASSWORD")
	}
	return missingErr(missing)
}

// ValidateLLM checks the provider selection and its API key.
func (c *Config) ValidateLLM() error {
	switch c.LLMProvider {
	case LLMProviderGemini:
		if c.GeminiAPIKey == "" {
			return missingErr([]string{"GEMINI_API_KEY"})
		}
	case LLMProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return missingErr([]string{"ANTHROPIC_API_KEY"})
		}
	default:
		return fmt.Errorf("%w: LLM_PROVIDER must be %q or %q, got %q",
			ErrInvalidConfig, LLMProviderGemini, LLMProviderAnthropic, c.LLMProvider)
	}
	return nil
}

// Validate checks everything needed to produce a recommendation.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateSoil(), c.ValidateLLM())
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func missingErr(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(names, ", "))
}

// NewLogger builds the process logger. LOG_FORMAT=console selects the
// human-readable writer; anything else emits JSON.
func NewLogger(cfg *Config, w io.Writer, service, version string) zerolog.Logger {
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
