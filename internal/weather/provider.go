package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Provider performs the remote request for a location query and returns
// the raw response body.
type Provider interface {
	Fetch(ctx context.Context, query string) ([]byte, error)
}

// KeySource supplies the API credential. It is consulted on every fetch so
// a changed key is picked up without a restart.
type KeySource interface {
	APIKey() (string, error)
}

// DefaultBaseURL is the Wunderground API endpoint.
const DefaultBaseURL = "http://api.wunderground.com"

const maxBody = 1 << 20

var (
	errCircuitOpen = errors.New("circuit breaker open")
	errStatus      = errors.New("unexpected status code")
)

// HTTPProvider fetches conditions from the Wunderground API.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	keys    KeySource
	circuit *gobreaker.CircuitBreaker
}

// NewHTTPProvider creates a provider. A nil client gets a 10 second timeout.
func NewHTTPProvider(client *http.Client, baseURL string, keys KeySource) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wunderground",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
	})

	return &HTTPProvider{
		client:  client,
		baseURL: baseURL,
		keys:    keys,
		circuit: cb,
	}
}

// Fetch requests current conditions for query. No retries are made; the
// circuit breaker stops hammering a service that keeps failing.
func (p *HTTPProvider) Fetch(ctx context.Context, query string) ([]byte, error) {
	key, err := p.keys.APIKey()
	if err != nil {
		return nil, fmt.Errorf("api key: %w", err)
	}

	u := fmt.Sprintf("%s/api/%s/conditions/q/%s.json", p.baseURL, url.PathEscape(key), url.PathEscape(query))

	result, err := p.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxBody))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
