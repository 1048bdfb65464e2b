// Package isda implements a soil.Provider for the iSDAsoil API.
//
// The API issues short-lived bearer tokens from a password login. The client
// keeps one session, refreshes it before it expires, and on a 401 refreshes
// once and replays the request once.
package isda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soiladvisor/soiladvisor/internal/provider/resilience"
	"github.com/soiladvisor/soiladvisor/internal/soil"
)

const (
	// ProviderName identifies this soil provider.
	ProviderName = "isda"

	// DefaultBaseURL is the iSDAsoil API base URL.
	DefaultBaseURL = "https://api.isda-africa.com"

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 15 * time.Second

	// TokenLifetime is how long an issued token is assumed to live.
	TokenLifetime = time.Hour

	// ExpiryMargin is subtracted from the expiry when checking validity.
	ExpiryMargin = 5 * time.Minute

	// TopsoilDepth is the only depth band requested.
	TopsoilDepth = "0-20"

	tracerName = "github.com/soiladvisor/soiladvisor/internal/soil/isda"
)

// Session is the current bearer token and its computed expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt.Add(-ExpiryMargin))
}

// ClientConfig holds configuration for the iSDAsoil client.
type ClientConfig struct {
	// Username and Password are the iSDAsoil account credentials (required).
	Username string
	Password string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a single-attempt resilient client with DefaultTimeout is used.
	HTTPClient *resilience.Client

	// Registry receives request outcomes for provider health reporting (optional).
	Registry *resilience.Registry

	// LazyAuth skips the login before the first request and relies on the
	// 401 handling to obtain a token.
	LazyAuth bool

	// Clock returns the current time (optional, defaults to time.Now).
	Clock func() time.Time

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an iSDAsoil API client. It is safe for concurrent use; requests
// are serialized so the session is never refreshed twice or read mid-refresh.
type Client struct {
	mu      sync.Mutex
	session Session

	username   string
	password   string
	baseURL    string
	lazyAuth   bool
	httpClient *resilience.Client
	registry   *resilience.Registry
	clock      func() time.Time
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewClient creates a new iSDAsoil client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.SingleAttemptConfig(ProviderName, DefaultTimeout)
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Client{
		username:   cfg.Username,
		password:   cfg.Password,
		baseURL:    baseURL,
		lazyAuth:   cfg.LazyAuth,
		httpClient: httpClient,
		registry:   cfg.Registry,
		clock:      clock,
		tracer:     otel.Tracer(tracerName),
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SessionValid reports whether the current token is usable without a refresh.
func (c *Client) SessionValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Valid(c.clock())
}

// Authenticate logs in and replaces the session. On failure the previous
// session is kept and the error wraps soil.ErrAuthFailed.
func (c *Client) Authenticate(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "isda.Authenticate")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authenticate(ctx); err != nil {
		c.fail(span, err)
		return err
	}
	return nil
}

// FetchSoilProperties returns the topsoil properties at coord.
func (c *Client) FetchSoilProperties(ctx context.Context, coord soil.Coordinate) (*soil.RawPayload, error) {
	ctx, span := c.tracer.Start(ctx, "isda.FetchSoilProperties",
		trace.WithAttributes(
			attribute.Float64("soil.lat", coord.Latitude),
			attribute.Float64("soil.lon", coord.Longitude),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := c.fetch(ctx, coord)
	if err != nil {
		c.fail(span, err)
		return nil, err
	}

	if c.registry != nil {
		c.registry.RecordSuccess(c.httpClient.Name())
	}
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, coord soil.Coordinate) (*soil.RawPayload, error) {
	if !c.lazyAuth && !c.session.Valid(c.clock()) {
		if err := c.authenticate(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.get(ctx, coord)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		c.logger.Debug().Msg("soil request unauthorized, refreshing session")

		if err := c.authenticate(ctx); err != nil {
			return nil, err
		}

		resp, err = c.get(ctx, coord)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status code: %d", soil.ErrFetchFailed, resp.StatusCode)
	}

	var payload soil.RawPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", soil.ErrFetchFailed, err)
	}

	c.logger.Debug().
		Float64("lat", coord.Latitude).
		Float64("lon", coord.Longitude).
		Int("fields", len(payload.Property)).
		Msg("fetched soil properties")

	return &payload, nil
}

// get issues one soil-property request with the current token.
func (c *Client) get(ctx context.Context, coord soil.Coordinate) (*http.Response, error) {
	q := url.Values{}
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("depth", TopsoilDepth)

	reqURL := c.baseURL + "/isdasoil/v2/soilproperty?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", soil.ErrFetchFailed, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", soil.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: executing request: %w", soil.ErrFetchFailed, err)
	}
	return resp, nil
}

// authenticate performs the password login. Callers hold c.mu.
func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("scope", "")
	form.Set("client_id", "string")
	form.Set("client_secret", "string")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", soil.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return fmt.Errorf("%w: %w: %w", soil.ErrAuthFailed, soil.ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%w: executing request: %w", soil.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status code: %d", soil.ErrAuthFailed, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("%w: decoding response: %w", soil.ErrAuthFailed, err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: response has no access_token", soil.ErrAuthFailed)
	}

	c.session = Session{
		Token:     token.AccessToken,
		ExpiresAt: c.clock().Add(TokenLifetime),
	}

	c.logger.Debug().Time("expires_at", c.session.ExpiresAt).Msg("authenticated")
	return nil
}

func (c *Client) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if c.registry != nil {
		c.registry.RecordFailure(c.httpClient.Name(), err)
	}
	c.logger.Warn().Err(err).Msg("soil provider request failed")
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
