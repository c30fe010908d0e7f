package weather

import (
	"time"
)

// Station is reference data for one weather station. ID is the natural key.
type Station struct {
	ID        *int64   `json:"stationId"`
	Name      *string  `json:"name,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Region    *string  `json:"region,omitempty"`
}

// Measurement is one observation of a station. ID is generated per extracted
// row and never derived from feed content.
type Measurement struct {
	ID                string     `json:"measurementId"`
	Timestamp         *time.Time `json:"timestamp"` // always UTC
	Temperature       *float64   `json:"temperature"`
	GroundTemperature *float64   `json:"groundTemperature"`
	FeelTemperature   *float64   `json:"feelTemperature"`
	WindGusts         *float64   `json:"windGusts"`
	WindSpeedBft      *int64     `json:"windSpeedBft"`
	Humidity          *float64   `json:"humidity"`
	Precipitation     *float64   `json:"precipitation"`
	SolarPower        *float64   `json:"solarPower"`
	StationID         *int64     `json:"stationId"`
}

// CycleState is the position of a cycle in the fetch, extract, load sequence.
type CycleState string

// CycleState values in the order a successful cycle passes through them.
const (
	StateFetching   CycleState = "fetching"
	StateExtracting CycleState = "extracting"
	StateLoading    CycleState = "loading"
	StateSucceeded  CycleState = "succeeded"
	StateFailed     CycleState = "failed"
)

// CycleResult is the outcome of one ETL cycle.
type CycleResult struct {
	State CycleState  `json:"state"`
	Kind  FailureKind `json:"kind"`
	// FailedIn is the state the cycle was in when it failed.
	FailedIn CycleState `json:"failedIn,omitempty"`
	Err      error      `json:"-"`
	Error    string     `json:"error,omitempty"`

	StationsExtracted     int `json:"stationsExtracted"`
	MeasurementsExtracted int `json:"measurementsExtracted"`
	StationsWritten       int `json:"stationsWritten"`
	MeasurementsWritten   int `json:"measurementsWritten"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether the cycle completed.
func (r CycleResult) Succeeded() bool {
	return r.State == StateSucceeded
}

// LoadResult counts the rows a load actually wrote.
type LoadResult struct {
	StationsWritten     int
	StationsSkipped     int
	MeasurementsWritten int
}

// StationTemperature is a per-station temperature aggregate.
type StationTemperature struct {
	StationID      int64    `json:"stationId"`
	StationName    *string  `json:"stationName"`
	MaxTemperature *float64 `json:"maxTemperature"`
}

// StationGap is the largest absolute difference between feel and actual
// temperature seen at a station.
type StationGap struct {
	StationID   int64   `json:"stationId"`
	StationName *string `json:"stationName"`
	MaxGap      float64 `json:"maxGap"`
}
