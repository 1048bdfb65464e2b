package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream provider.
type ProviderHealth struct {
	Name string

	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// ConsecutiveFailures counts failed calls since the last success. Unlike
	// Counts it survives the breaker's state changes, which clear Counts.
	ConsecutiveFailures uint32

	// LastSuccessAt and LastFailureAt are nil until the first call completes.
	LastSuccessAt *time.Time
	LastFailureAt *time.Time

	// LastError is the message of the most recent failure.
	LastError string
}

// IsHealthy reports a closed circuit whose last call succeeded.
func (h *ProviderHealth) IsHealthy() bool {
	return !h.IsDegraded() && !h.IsUnhealthy()
}

// IsDegraded reports a half-open circuit, or a closed one whose most recent
// calls failed without tripping it yet.
func (h *ProviderHealth) IsDegraded() bool {
	switch h.CircuitState {
	case gobreaker.StateHalfOpen:
		return true
	case gobreaker.StateClosed:
		return h.ConsecutiveFailures > 0
	default:
		return false
	}
}

// IsUnhealthy reports an open circuit; calls fail fast until it half-opens.
func (h *ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks the resilient clients of the soil provider and the
// recommendation generators for the ops endpoints.
type Registry struct {
	mu        sync.RWMutex
	now       func() time.Time
	providers map[string]*registeredProvider
}

type registeredProvider struct {
	client              *Client
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	consecutiveFailures uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:       time.Now,
		providers: make(map[string]*registeredProvider),
	}
}

// Register adds a client under name, replacing any previous registration.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{client: client}
}

// RecordSuccess stamps the last successful call and resets the failure run.
// Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.lastSuccessAt = &now
		p.consecutiveFailures = 0
	}
}

// RecordFailure stamps the last failed call, keeps its message and extends
// the failure run. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.lastFailureAt = &now
		p.consecutiveFailures++
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of one provider, or nil if it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	return p.health(name)
}

// GetAllHealth returns the health of every provider, ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ProviderHealth, 0, len(r.providers))
	for _, name := range r.namesLocked() {
		health = append(health, r.providers[name].health(name))
	}
	return health
}

// GetProviderNames returns the registered names in sorted order.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *registeredProvider) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:                name,
		CircuitState:        p.client.CircuitBreakerState(),
		Counts:              p.client.CircuitBreakerCounts(),
		ConsecutiveFailures: p.consecutiveFailures,
		LastSuccessAt:       p.lastSuccessAt,
		LastFailureAt:       p.lastFailureAt,
		LastError:           p.lastError,
	}
}
