package weather

import (
	"context"
)

// Provider abstracts the station feed (e.g. Buienradar).
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (*FeedPayload, error)
}

// ProviderFunc adapts a plain fetch function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*FeedPayload, error)

func (f ProviderFunc) Name() string { return "func" }

func (f ProviderFunc) Fetch(ctx context.Context) (*FeedPayload, error) { return f(ctx) }

// Store is the contract the SQLite store and the in-memory store satisfy.
//
// UpsertStations inserts stations whose ID is not yet present and leaves
// existing rows untouched. UpsertMeasurements inserts or fully replaces rows by
// measurement ID and fails the whole batch with a *ReferentialIntegrityError
// when a row references an unknown station. Load applies both in one
// transaction.
type Store interface {
	EnsureSchema(ctx context.Context) error
	UpsertStations(ctx context.Context, stations []Station) (int, error)
	UpsertMeasurements(ctx context.Context, measurements []Measurement) (int, error)
	Load(ctx context.Context, stations []Station, measurements []Measurement) (LoadResult, error)
}

// Exporter receives every extracted snapshot before it is loaded.
type Exporter interface {
	Export(ctx context.Context, measurements []Measurement, stations []Station) error
}

// Reporter answers the fixed read-only reporting queries.
type Reporter interface {
	MaxTemperatureByStation(ctx context.Context) ([]StationTemperature, error)
	AverageTemperature(ctx context.Context) (*float64, error)
	BiggestFeelGap(ctx context.Context) (*StationGap, error)
	StationsInRegion(ctx context.Context, terms ...string) ([]Station, error)
}

// CoastalRegionTerms match the North Sea stations in the region text.
var CoastalRegionTerms = []string{"noordzee", "north sea"}
