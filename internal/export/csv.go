package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/i474232898/weather-etl/internal/weather"
)

var (
	measurementHeader = []string{
		"measurementid", "timestamp", "temperature", "groundtemperature", "feeltemperature",
		"windgusts", "windspeedBft", "humidity", "precipitation", "sunpower", "stationid",
	}
	stationHeader = []string{"stationid", "stationname", "lat", "lon", "regio"}
)

// CSVExporter writes the extracted measurements and stations of a cycle to two
// CSV files, replacing the previous snapshot. An empty path skips that file.
type CSVExporter struct {
	MeasurementsPath string
	StationsPath     string
	logger           *slog.Logger
}

var _ weather.Exporter = (*CSVExporter)(nil)

// NewCSVExporter creates a new CSVExporter.
func NewCSVExporter(measurementsPath, stationsPath string, logger *slog.Logger) *CSVExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{
		MeasurementsPath: measurementsPath,
		StationsPath:     stationsPath,
		logger:           logger.With("component", "csv-export"),
	}
}

func (e *CSVExporter) Export(ctx context.Context, measurements []weather.Measurement, stations []weather.Station) error {
	if e.MeasurementsPath != "" {
		rows := make([][]string, 0, len(measurements))
		for _, m := range measurements {
			rows = append(rows, measurementRow(m))
		}
		if err := writeCSV(ctx, e.MeasurementsPath, measurementHeader, rows); err != nil {
			return fmt.Errorf("export measurements: %w", err)
		}
		e.logger.Info("saved rows", "rows", len(rows), "path", e.MeasurementsPath)
	}

	if e.StationsPath != "" {
		rows := make([][]string, 0, len(stations))
		for _, st := range stations {
			rows = append(rows, stationRow(st))
		}
		if err := writeCSV(ctx, e.StationsPath, stationHeader, rows); err != nil {
			return fmt.Errorf("export stations: %w", err)
		}
		e.logger.Info("saved rows", "rows", len(rows), "path", e.StationsPath)
	}
	return nil
}

// writeCSV writes to a temporary file next to path and renames it into place,
// so readers never see a partial file.
func writeCSV(ctx context.Context, path string, header []string, rows [][]string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write(header); err != nil {
		return err
	}
	if err = w.WriteAll(rows); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func measurementRow(m weather.Measurement) []string {
	ts := ""
	if m.Timestamp != nil {
		ts = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{
		m.ID,
		ts,
		formatFloat(m.Temperature),
		formatFloat(m.GroundTemperature),
		formatFloat(m.FeelTemperature),
		formatFloat(m.WindGusts),
		formatInt(m.WindSpeedBft),
		formatFloat(m.Humidity),
		formatFloat(m.Precipitation),
		formatFloat(m.SolarPower),
		formatInt(m.StationID),
	}
}

func stationRow(st weather.Station) []string {
	return []string{
		formatInt(st.ID),
		formatString(st.Name),
		formatFloat(st.Latitude),
		formatFloat(st.Longitude),
		formatString(st.Region),
	}
}

// Null values are written as empty fields.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
