// Package resilience wraps outbound HTTP calls to the soil-data and
// language-model providers with circuit breakers, timeouts and optional retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures the breaker in front of one provider.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is how many probe requests pass while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically; zero never clears
	// them, so a success is what resets ConsecutiveFailures.
	Interval time.Duration

	// Timeout is how long the circuit stays open before half-opening.
	Timeout time.Duration

	// ReadyToTrip decides when the closed circuit opens.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange overrides the default transition log line.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens after a sustained failure rate and probes
// again after a minute. iSDAsoil and the model APIs both recover on that scale.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip trips once at least 5 requests were counted and half or
// more of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// NewCircuitBreaker builds a breaker from cfg. Without an OnStateChange hook,
// transitions are logged to log: opening at warn, recovering at info.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	onChange := cfg.OnStateChange
	if onChange == nil {
		onChange = func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: onChange,
	})
}
