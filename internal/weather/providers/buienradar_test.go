package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-etl/internal/weather"
)

func newTestProvider(t *testing.T, maxRetries int, handler http.HandlerFunc) (*BuienradarProvider, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewBuienradarProvider(srv.Client(), srv.URL, maxRetries)
	p.httpCfg.Backoff.InitialInterval = time.Millisecond
	p.httpCfg.Backoff.MaxInterval = 5 * time.Millisecond
	return p, &hits
}

func TestBuienradarFetch_Success(t *testing.T) {
	p, hits := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"actual":{"stationmeasurements":[{"stationid":6275,"stationname":"Arcen","temperature":12.3}]}}`))
	})

	payload, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, payload.Actual)
	require.Len(t, payload.Actual.StationMeasurements, 1)
	assert.Equal(t, int64(6275), *payload.Actual.StationMeasurements[0].StationID.V)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "buienradar", p.Name())
}

func TestBuienradarFetch_ServerErrorIsFetchError(t *testing.T) {
	p, hits := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Fetch(context.Background())
	var fetchErr *weather.FetchError
	require.True(t, errors.As(err, &fetchErr), "expected FetchError, got %v", err)
	assert.True(t, errors.Is(err, errServerError))
	assert.Equal(t, int32(1), hits.Load(), "no retries by default")
}

func TestBuienradarFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p, hits := newTestProvider(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"actual":{"stationmeasurements":[]}}`))
	})

	payload, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, payload.Actual.StationMeasurements)
	assert.Equal(t, int32(3), hits.Load())
}

func TestBuienradarFetch_ClientErrorNotRetried(t *testing.T) {
	p, hits := newTestProvider(t, 3, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := p.Fetch(context.Background())
	assert.True(t, errors.Is(err, errUnexpected))
	assert.Equal(t, weather.FailureFetch, weather.KindOf(err, weather.FailureNone))
	assert.Equal(t, int32(1), hits.Load())
}

func TestBuienradarFetch_MalformedJSON(t *testing.T) {
	p, _ := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"actual": [`))
	})

	_, err := p.Fetch(context.Background())
	assert.Equal(t, weather.FailureFetch, weather.KindOf(err, weather.FailureNone))
}

func TestBuienradarFetch_WrongShape(t *testing.T) {
	p, _ := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"actual":{"stationmeasurements":"unavailable"}}`))
	})

	_, err := p.Fetch(context.Background())
	assert.Equal(t, weather.FailureShape, weather.KindOf(err, weather.FailureNone))
}

func TestBuienradarFetch_CircuitOpens(t *testing.T) {
	p, hits := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background())
		require.Error(t, err)
	}
	_, err := p.Fetch(context.Background())
	assert.True(t, errors.Is(err, errCircuitOpen), "expected open circuit, got %v", err)
	assert.Equal(t, int32(5), hits.Load())
}

func TestBuienradarFetch_ContextCanceled(t *testing.T) {
	p, hits := newTestProvider(t, 0, func(w http.ResponseWriter, r *http.Request) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Fetch(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), hits.Load())
}

func TestDefaultURL(t *testing.T) {
	p := NewBuienradarProvider(http.DefaultClient, "", 0)
	assert.Equal(t, DefaultBuienradarURL, p.baseURL)
}
