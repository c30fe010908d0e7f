package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"

	"github.com/i474232898/weather-etl/internal/weather"
)

//go:embed sql/report-max-temperature.sql
var reportMaxTemperatureSQL string

//go:embed sql/report-average-temperature.sql
var reportAverageTemperatureSQL string

//go:embed sql/report-feel-gap.sql
var reportFeelGapSQL string

// MaxTemperatureByStation returns the highest temperature per station, hottest first.
func (s *SQLiteStore) MaxTemperatureByStation(ctx context.Context) ([]weather.StationTemperature, error) {
	rows, err := s.db.QueryContext(ctx, reportMaxTemperatureSQL)
	if err != nil {
		return nil, &weather.StorageError{Op: "report max temperature", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close max temperature rows", "error", err)
		}
	}()

	out := []weather.StationTemperature{}
	for rows.Next() {
		var (
			rec     weather.StationTemperature
			name    sql.NullString
			maxTemp sql.NullFloat64
		)
		if err := rows.Scan(&rec.StationID, &name, &maxTemp); err != nil {
			return nil, err
		}
		rec.StationName = stringPtr(name)
		rec.MaxTemperature = floatPtr(maxTemp)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AverageTemperature returns the mean temperature over all measurements,
// rounded to two decimals, or nil when there is none.
func (s *SQLiteStore) AverageTemperature(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, reportAverageTemperatureSQL).Scan(&avg); err != nil {
		return nil, &weather.StorageError{Op: "report average temperature", Err: err}
	}
	return floatPtr(avg), nil
}

// BiggestFeelGap returns the station with the largest difference between feel
// and actual temperature, or nil when no measurement has both.
func (s *SQLiteStore) BiggestFeelGap(ctx context.Context) (*weather.StationGap, error) {
	var (
		gap  weather.StationGap
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx, reportFeelGapSQL).Scan(&gap.StationID, &name, &gap.MaxGap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &weather.StorageError{Op: "report feel gap", Err: err}
	}
	gap.StationName = stringPtr(name)
	return &gap, nil
}

// StationsInRegion returns stations whose region contains any of terms,
// case-insensitively. Without terms the coastal terms are used.
func (s *SQLiteStore) StationsInRegion(ctx context.Context, terms ...string) ([]weather.Station, error) {
	terms = normalizeTerms(terms)

	conds := make([]string, 0, len(terms))
	args := make([]interface{}, 0, len(terms))
	for _, t := range terms {
		conds = append(conds, "instr(LOWER(region), ?) > 0")
		args = append(args, t)
	}
	query := `SELECT station_id, name, latitude, longitude, region
FROM stations
WHERE ` + strings.Join(conds, " OR ") + `
ORDER BY station_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &weather.StorageError{Op: "query stations by region", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close region rows", "error", err)
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

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return weather.CoastalRegionTerms
	}
	return out
}
