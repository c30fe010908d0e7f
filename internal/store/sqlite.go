package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-etl/internal/weather"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-station.sql
var insertStationSQL string

//go:embed sql/upsert-measurement.sql
var upsertMeasurementSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-measurements.sql
var getMeasurementsSQL string

// timestampLayout is the text form of measurements.timestamp. It is fixed
// width so it sorts chronologically as a string; sub-second precision is
// dropped since the feed reports whole seconds.
const timestampLayout = "2006-01-02T15:04:05Z"

// SQLiteStore persists stations and measurements in SQLite. The connection
// must have foreign key enforcement enabled (see db.Open).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ weather.Store    = (*SQLiteStore)(nil)
	_ weather.Reporter = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

// errForeignKeysOff is returned when the connection does not enforce
// measurements.station_id.
var errForeignKeysOff = errors.New("foreign key enforcement is disabled on this connection")

// EnsureSchema creates the tables and indexes if they do not exist yet and
// checks that the connection enforces foreign keys.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return &weather.StorageError{Op: "ensure schema", Err: err}
	}
	var enabled int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return &weather.StorageError{Op: "ensure schema: foreign keys", Err: err}
	}
	if enabled != 1 {
		return &weather.StorageError{Op: "ensure schema", Err: errForeignKeysOff}
	}
	s.logger.Debug("schema ensured")
	return nil
}

// UpsertStations inserts stations that are not present yet in one
// transaction and returns the number of rows written.
func (s *SQLiteStore) UpsertStations(ctx context.Context, stations []weather.Station) (int, error) {
	var written, skipped int
	err := s.withTx(ctx, "upsert stations", func(tx *sql.Tx) error {
		var err error
		written, skipped, err = upsertStations(ctx, tx, stations)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("stations upserted", "written", written, "ignored", len(stations)-written-skipped, "skipped", skipped)
	return written, nil
}

// UpsertMeasurements inserts or replaces measurements in one transaction. The
// whole batch is rolled back when any row references an unknown station.
func (s *SQLiteStore) UpsertMeasurements(ctx context.Context, measurements []weather.Measurement) (int, error) {
	var written int
	err := s.withTx(ctx, "upsert measurements", func(tx *sql.Tx) error {
		var err error
		written, err = upsertMeasurements(ctx, tx, measurements)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("measurements upserted", "written", written)
	return written, nil
}

// Load writes stations and then measurements in a single transaction.
func (s *SQLiteStore) Load(ctx context.Context, stations []weather.Station, measurements []weather.Measurement) (weather.LoadResult, error) {
	var res weather.LoadResult
	err := s.withTx(ctx, "load", func(tx *sql.Tx) error {
		var err error
		res.StationsWritten, res.StationsSkipped, err = upsertStations(ctx, tx, stations)
		if err != nil {
			return err
		}
		res.MeasurementsWritten, err = upsertMeasurements(ctx, tx, measurements)
		return err
	})
	if err != nil {
		return weather.LoadResult{}, err
	}
	return res, nil
}

// withTx runs fn inside a transaction that is committed when fn succeeds and
// rolled back on error or panic.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &weather.StorageError{Op: op + ": begin", Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("rollback failed", "op", op, "error", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return &weather.StorageError{Op: op + ": commit", Err: err}
	}
	return nil
}

// upsertStations skips stations without an ID since the natural key is required.
func upsertStations(ctx context.Context, tx *sql.Tx, stations []weather.Station) (written, skipped int, err error) {
	if len(stations) == 0 {
		return 0, 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, insertStationSQL)
	if err != nil {
		return 0, 0, &weather.StorageError{Op: "prepare insert station", Err: err}
	}
	defer stmt.Close()

	for _, st := range stations {
		if st.ID == nil {
			skipped++
			continue
		}
		res, err := stmt.ExecContext(ctx, *st.ID, nullString(st.Name), nullFloat(st.Latitude), nullFloat(st.Longitude), nullString(st.Region))
		if err != nil {
			return 0, 0, &weather.StorageError{Op: fmt.Sprintf("insert station %d", *st.ID), Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, &weather.StorageError{Op: "rows affected", Err: err}
		}
		written += int(n)
	}
	return written, skipped, nil
}

func upsertMeasurements(ctx context.Context, tx *sql.Tx, measurements []weather.Measurement) (int, error) {
	if len(measurements) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertMeasurementSQL)
	if err != nil {
		return 0, &weather.StorageError{Op: "prepare upsert measurement", Err: err}
	}
	defer stmt.Close()

	written := 0
	for _, m := range measurements {
		if m.StationID == nil {
			return 0, &weather.ReferentialIntegrityError{MeasurementID: m.ID}
		}
		_, err := stmt.ExecContext(ctx,
			m.ID,
			formatTimestamp(m.Timestamp),
			nullFloat(m.Temperature),
			nullFloat(m.GroundTemperature),
			nullFloat(m.FeelTemperature),
			nullFloat(m.WindGusts),
			nullInt(m.WindSpeedBft),
			nullFloat(m.Humidity),
			nullFloat(m.Precipitation),
			nullFloat(m.SolarPower),
			*m.StationID,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return 0, &weather.ReferentialIntegrityError{MeasurementID: m.ID, StationID: m.StationID, Err: err}
			}
			return 0, &weather.StorageError{Op: "upsert measurement " + m.ID, Err: err}
		}
		written++
	}
	return written, nil
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// Stations returns all persisted stations ordered by ID.
func (s *SQLiteStore) Stations(ctx context.Context) ([]weather.Station, error) {
	rows, err := s.db.QueryContext(ctx, getStationsSQL)
	if err != nil {
		return nil, &weather.StorageError{Op: "query stations", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close stations rows", "error", err)
		}
	}()

	out := []weather.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Measurements returns all persisted measurements, newest first.
func (s *SQLiteStore) Measurements(ctx context.Context) ([]weather.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, getMeasurementsSQL)
	if err != nil {
		return nil, &weather.StorageError{Op: "query measurements", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close measurements rows", "error", err)
		}
	}()

	out := []weather.Measurement{}
	for rows.Next() {
		var (
			m                                   weather.Measurement
			ts                                  sql.NullString
			temp, ground, feel, gusts           sql.NullFloat64
			humidity, precipitation, solarPower sql.NullFloat64
			bft                                 sql.NullInt64
			stationID                           int64
		)
		if err := rows.Scan(&m.ID, &ts, &temp, &ground, &feel, &gusts, &bft, &humidity, &precipitation, &solarPower, &stationID); err != nil {
			return nil, err
		}
		if ts.Valid {
			m.Timestamp = weather.ParseTimestamp(ts.String)
		}
		m.Temperature = floatPtr(temp)
		m.GroundTemperature = floatPtr(ground)
		m.FeelTemperature = floatPtr(feel)
		m.WindGusts = floatPtr(gusts)
		m.WindSpeedBft = intPtr(bft)
		m.Humidity = floatPtr(humidity)
		m.Precipitation = floatPtr(precipitation)
		m.SolarPower = floatPtr(solarPower)
		m.StationID = &stationID
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanStation(rows *sql.Rows) (weather.Station, error) {
	var (
		id           int64
		name, region sql.NullString
		lat, lon     sql.NullFloat64
	)
	if err := rows.Scan(&id, &name, &lat, &lon, &region); err != nil {
		return weather.Station{}, err
	}
	return weather.Station{
		ID:        &id,
		Name:      stringPtr(name),
		Latitude:  floatPtr(lat),
		Longitude: floatPtr(lon),
		Region:    stringPtr(region),
	}, nil
}

func formatTimestamp(ts *time.Time) interface{} {
	if ts == nil {
		return nil
	}
	return ts.UTC().Format(timestampLayout)
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
