package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultBuienradarURL is the public Buienradar JSON feed.
const DefaultBuienradarURL = "https://data.buienradar.nl/2.0/feed/json"

// BuienradarProvider implements the weather.Provider interface for the Buienradar feed.
type BuienradarProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewBuienradarProvider creates a provider for the feed at baseURL, or the
// public feed when baseURL is empty. maxRetries of zero disables retries.
func NewBuienradarProvider(client *http.Client, baseURL string, maxRetries int) *BuienradarProvider {
	if baseURL == "" {
		baseURL = DefaultBuienradarURL
	}
	return &BuienradarProvider{
		name:    "buienradar",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("buienradar"),
	}
}

func (p *BuienradarProvider) Name() string {
	return p.name
}

// Fetch downloads and decodes one feed snapshot. Transport failures are
// returned as *weather.FetchError; a document with the wrong structure keeps
// its *weather.ShapeError.
func (p *BuienradarProvider) Fetch(ctx context.Context) (*weather.FeedPayload, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, &weather.FetchError{Source: p.name, Err: err}
	}
	defer resp.Body.Close()

	payload, err := weather.DecodePayload(resp.Body)
	if err != nil {
		var shapeErr *weather.ShapeError
		if errors.As(err, &shapeErr) {
			return nil, err
		}
		return nil, &weather.FetchError{Source: p.name, Err: err}
	}
	return payload, nil
}
