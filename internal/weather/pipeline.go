package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Pipeline runs fetch, extract and load cycles against a single store.
type Pipeline struct {
	provider     Provider
	store        Store
	logger       *slog.Logger
	exporter     Exporter
	fetchTimeout time.Duration
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetchTimeout bounds the fetch stage. Zero leaves it to the provider.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.fetchTimeout = d }
}

// WithExporter writes every extracted snapshot to e. Export failures are
// logged and do not fail the cycle.
func WithExporter(e Exporter) Option {
	return func(p *Pipeline) { p.exporter = e }
}

// WithClock replaces time.Now for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a new Pipeline.
func NewPipeline(provider Provider, store Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		provider: provider,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunCycle executes exactly one cycle and classifies its outcome. Failures are
// never retried here; the scheduler simply runs the next cycle.
func (p *Pipeline) RunCycle(ctx context.Context) CycleResult {
	start := p.now()
	res := CycleResult{
		State:     StateFetching,
		Kind:      FailureNone,
		StartedAt: start.UTC(),
	}
	log := p.logger.With("provider", p.provider.Name())
	log.Debug("cycle started")

	payload, err := p.fetch(ctx)
	if err != nil {
		return p.fail(log, res, start, err)
	}

	res.State = StateExtracting
	measurements, err := ExtractMeasurements(payload)
	if err != nil {
		return p.fail(log, res, start, err)
	}
	stations, err := ExtractStations(payload)
	if err != nil {
		return p.fail(log, res, start, err)
	}
	res.MeasurementsExtracted = len(measurements)
	res.StationsExtracted = len(stations)
	log.Debug("extracted feed", "measurements", len(measurements), "stations", len(stations))

	if p.exporter != nil {
		if err := p.exporter.Export(ctx, measurements, stations); err != nil {
			log.Warn("export failed", "error", err)
		}
	}

	res.State = StateLoading
	if err := p.store.EnsureSchema(ctx); err != nil {
		return p.fail(log, res, start, storageErr("ensure schema", err))
	}
	loaded, err := p.store.Load(ctx, stations, measurements)
	if err != nil {
		return p.fail(log, res, start, storageErr("load", err))
	}
	res.StationsWritten = loaded.StationsWritten
	res.MeasurementsWritten = loaded.MeasurementsWritten

	res.State = StateSucceeded
	res.Duration = p.now().Sub(start)
	log.Info("cycle succeeded",
		"stationsWritten", res.StationsWritten,
		"stationsSkipped", loaded.StationsSkipped,
		"measurementsWritten", res.MeasurementsWritten,
		"duration", res.Duration,
	)
	return res
}

func (p *Pipeline) fetch(ctx context.Context) (*FeedPayload, error) {
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	payload, err := p.provider.Fetch(ctx)
	if err == nil {
		return payload, nil
	}
	var (
		shapeErr *ShapeError
		fetchErr *FetchError
	)
	if errors.As(err, &shapeErr) || errors.As(err, &fetchErr) {
		return nil, err
	}
	return nil, &FetchError{Source: p.provider.Name(), Err: err}
}

func (p *Pipeline) fail(log *slog.Logger, res CycleResult, start time.Time, err error) CycleResult {
	fallback := FailureStorage
	switch res.State {
	case StateFetching:
		fallback = FailureFetch
	case StateExtracting:
		fallback = FailureShape
	}
	res.FailedIn = res.State
	res.State = StateFailed
	res.Kind = KindOf(err, fallback)
	res.Err = err
	res.Error = err.Error()
	res.Duration = p.now().Sub(start)
	log.Error("cycle failed", "kind", res.Kind, "stage", res.FailedIn, "error", err)
	return res
}

// storageErr wraps untyped store failures so every load error is classified.
func storageErr(op string, err error) error {
	var (
		refErr *ReferentialIntegrityError
		stErr  *StorageError
	)
	if errors.As(err, &refErr) || errors.As(err, &stErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
