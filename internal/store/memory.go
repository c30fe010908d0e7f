package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/i474232898/weather-etl/internal/common"
	"github.com/i474232898/weather-etl/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of the weather
// store with the same write semantics as SQLiteStore. Nothing survives a
// restart; it backs dry runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station ID
	stations map[int64]weather.Station
	// key: measurement ID
	measurements map[string]weather.Measurement
}

var (
	_ weather.Store    = (*MemoryStore)(nil)
	_ weather.Reporter = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stations:     make(map[int64]weather.Station),
		measurements: make(map[string]weather.Measurement),
	}
}

// EnsureSchema is a no-op; the maps exist from construction.
func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return ctx.Err()
}

// UpsertStations keeps the first version of every station.
func (s *MemoryStore) UpsertStations(ctx context.Context, stations []weather.Station) (int, error) {
	res, err := s.Load(ctx, stations, nil)
	return res.StationsWritten, err
}

// UpsertMeasurements replaces measurements by ID. Nothing is written when any
// measurement references an unknown station.
func (s *MemoryStore) UpsertMeasurements(ctx context.Context, measurements []weather.Measurement) (int, error) {
	res, err := s.Load(ctx, nil, measurements)
	return res.MeasurementsWritten, err
}

// Load validates the whole batch before applying it, so a failed load leaves
// the store unchanged.
func (s *MemoryStore) Load(ctx context.Context, stations []weather.Station, measurements []weather.Measurement) (weather.LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return weather.LoadResult{}, &weather.StorageError{Op: "load", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res weather.LoadResult
	pending := make(map[int64]weather.Station)
	for _, st := range stations {
		if st.ID == nil {
			res.StationsSkipped++
			continue
		}
		if _, ok := s.stations[*st.ID]; ok {
			continue
		}
		if _, ok := pending[*st.ID]; ok {
			continue
		}
		pending[*st.ID] = st
	}

	for _, m := range measurements {
		if m.StationID == nil {
			return weather.LoadResult{}, &weather.ReferentialIntegrityError{MeasurementID: m.ID}
		}
		_, known := s.stations[*m.StationID]
		_, staged := pending[*m.StationID]
		if !known && !staged {
			return weather.LoadResult{}, &weather.ReferentialIntegrityError{MeasurementID: m.ID, StationID: m.StationID}
		}
	}

	for id, st := range pending {
		s.stations[id] = st
	}
	for _, m := range measurements {
		s.measurements[m.ID] = m
	}
	res.StationsWritten = len(pending)
	res.MeasurementsWritten = len(measurements)
	return res, nil
}

// Stations returns all stations ordered by ID.
func (s *MemoryStore) Stations(ctx context.Context) ([]weather.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out, nil
}

// Measurements returns all measurements, newest first.
func (s *MemoryStore) Measurements(ctx context.Context) ([]weather.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.Measurement, 0, len(s.measurements))
	for _, m := range s.measurements {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out, nil
}

func (s *MemoryStore) MaxTemperatureByStation(ctx context.Context) ([]weather.StationTemperature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStation := make(map[int64]*weather.StationTemperature)
	for _, m := range s.measurements {
		id := *m.StationID
		rec, ok := byStation[id]
		if !ok {
			rec = &weather.StationTemperature{StationID: id, StationName: s.stations[id].Name}
			byStation[id] = rec
		}
		if m.Temperature != nil && (rec.MaxTemperature == nil || *m.Temperature > *rec.MaxTemperature) {
			t := *m.Temperature
			rec.MaxTemperature = &t
		}
	}

	out := make([]weather.StationTemperature, 0, len(byStation))
	for _, rec := range byStation {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].MaxTemperature, out[j].MaxTemperature
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return out[i].StationID < out[j].StationID
		}
	})
	return out, nil
}

func (s *MemoryStore) AverageTemperature(ctx context.Context) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sum float64
		n   int
	)
	for _, m := range s.measurements {
		if m.Temperature != nil {
			sum += *m.Temperature
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := math.Round(sum/float64(n)*100) / 100
	return &avg, nil
}

func (s *MemoryStore) BiggestFeelGap(ctx context.Context) (*weather.StationGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *weather.StationGap
	for _, m := range s.measurements {
		if m.Temperature == nil || m.FeelTemperature == nil {
			continue
		}
		gap := math.Abs(*m.FeelTemperature - *m.Temperature)
		id := *m.StationID
		if best == nil || gap > best.MaxGap || (gap == best.MaxGap && id < best.StationID) {
			best = &weather.StationGap{StationID: id, StationName: s.stations[id].Name, MaxGap: gap}
		}
	}
	return best, nil
}

func (s *MemoryStore) StationsInRegion(ctx context.Context, terms ...string) ([]weather.Station, error) {
	terms = normalizeTerms(terms)

	all, err := s.Stations(ctx)
	if err != nil {
		return nil, err
	}
	out := []weather.Station{}
	for _, st := range all {
		if st.Region != nil && common.HasAny(strings.ToLower(*st.Region), terms...) {
			out = append(out, st)
		}
	}
	return out, nil
}
