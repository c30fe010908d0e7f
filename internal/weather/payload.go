package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// FeedPayload is one decoded snapshot of the station feed.
// Actual is nil when the feed omitted the "actual" section entirely.
type FeedPayload struct {
	Actual *ActualSection `json:"actual"`
}

// ActualSection holds the current observations of the feed.
// StationMeasurements is nil when the key is missing or null, and an empty
// (non-nil) slice when the feed reported no stations.
type ActualSection struct {
	StationMeasurements []StationMeasurement `json:"stationmeasurements"`
}

// StationMeasurement is a single per-station entry of the feed. It carries both
// the measurement values and the station metadata; every field is optional and
// decodes to null when the source value is missing or malformed.
type StationMeasurement struct {
	StationID   Int    `json:"stationid"`
	StationName String `json:"stationname"`
	Lat         Float  `json:"lat"`
	Lon         Float  `json:"lon"`
	Region      String `json:"regio"`

	Timestamp         Time  `json:"timestamp"`
	Temperature       Float `json:"temperature"`
	GroundTemperature Float `json:"groundtemperature"`
	FeelTemperature   Float `json:"feeltemperature"`
	WindGusts         Float `json:"windgusts"`
	WindSpeedBft      Int   `json:"windspeedBft"`
	Humidity          Float `json:"humidity"`
	Precipitation     Float `json:"precipitation"`
	SunPower          Float `json:"sunpower"`
}

// DecodePayload decodes a raw feed document. Syntax errors are returned as-is;
// a document whose structure does not match the feed layout (for example an
// "actual" value that is not an object) is reported as a *ShapeError.
func DecodePayload(r io.Reader) (*FeedPayload, error) {
	var p FeedPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ShapeError{Reason: fmt.Sprintf("unexpected %s at %q", typeErr.Value, typeErr.Field)}
		}
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &p, nil
}

// entries returns the station entries or a *ShapeError when the top-level
// collection is absent.
func (p *FeedPayload) entries() ([]StationMeasurement, error) {
	if p == nil {
		return nil, &ShapeError{Reason: "payload is nil"}
	}
	if p.Actual == nil {
		return nil, &ShapeError{Reason: `missing "actual" section`}
	}
	if p.Actual.StationMeasurements == nil {
		return nil, &ShapeError{Reason: `missing "actual.stationmeasurements" collection`}
	}
	return p.Actual.StationMeasurements, nil
}

// Float is a lenient JSON number. Numeric strings are accepted; anything that
// does not parse to a finite number decodes to null.
type Float struct {
	V *float64
}

func (f *Float) UnmarshalJSON(b []byte) error {
	f.V = parseFloat(scalarText(b))
	return nil
}

// Int is a lenient JSON integer. Integral floats ("6.0") are accepted,
// fractional or non-numeric values decode to null.
type Int struct {
	V *int64
}

func (n *Int) UnmarshalJSON(b []byte) error {
	n.V = nil
	v := parseFloat(scalarText(b))
	if v == nil || *v != math.Trunc(*v) || math.Abs(*v) >= 1<<63 {
		return nil
	}
	i := int64(*v)
	n.V = &i
	return nil
}

// String is a lenient JSON text value. Numbers keep their literal text.
type String struct {
	V *string
}

func (s *String) UnmarshalJSON(b []byte) error {
	s.V = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '{' || b[0] == '[' || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		s.V = &v
		return nil
	}
	if bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) {
		return nil
	}
	v := string(b)
	s.V = &v
	return nil
}

// Time is a lenient timestamp normalized to UTC. Values without a zone are
// taken to be UTC already.
type Time struct {
	V *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	t.V = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.V = ParseTimestamp(s)
	return nil
}

// ParseTimestamp parses the timestamp formats seen in the feed and returns the
// instant in UTC, or nil when s matches none of them.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

// scalarText returns the text of a JSON number or string literal, or "" for
// anything else.
func scalarText(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ""
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		return string(b)
	}
	return ""
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
