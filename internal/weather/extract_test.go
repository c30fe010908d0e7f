package weather

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

const samplePayload = `{
  "actual": {
    "stationmeasurements": [
      {"stationid": 6275, "stationname": "Meetstation Arcen", "lat": 51.5, "lon": 6.2, "regio": "Venlo",
       "timestamp": "2024-03-01T12:00:00", "temperature": 12.3, "feeltemperature": 11.0, "windspeedBft": 3},
      {"stationid": 6320, "stationname": "Meetstation Lichteiland Goeree", "lat": 51.9, "lon": 3.7, "regio": "Noordzee",
       "timestamp": "2024-03-01T12:10:00", "temperature": "-", "feeltemperature": 2.1, "sunpower": 300},
      {"stationid": 6275, "stationname": "Arcen duplicate", "regio": "Elsewhere",
       "timestamp": null, "temperature": 13.0},
      {"stationname": "Unnamed", "timestamp": "2024-03-01T11:50:00"}
    ]
  }
}`

func decodeSample(t *testing.T, doc string) *FeedPayload {
	t.Helper()
	p, err := DecodePayload(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestExtractMeasurements(t *testing.T) {
	p := decodeSample(t, samplePayload)

	got, err := ExtractMeasurements(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 measurements, got %d", len(got))
	}

	ids := make(map[string]struct{}, len(got))
	for _, m := range got {
		if _, err := uuid.Parse(m.ID); err != nil {
			t.Fatalf("measurement id %q is not a uuid: %v", m.ID, err)
		}
		ids[m.ID] = struct{}{}
	}
	if len(ids) != len(got) {
		t.Fatalf("expected unique ids, got %d distinct of %d", len(ids), len(got))
	}

	ts := func(h, m int) *time.Time {
		v := time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
		return &v
	}
	want := []Measurement{
		{Timestamp: ts(12, 10), FeelTemperature: fp(2.1), SolarPower: fp(300), StationID: ip(6320)},
		{Timestamp: ts(12, 0), Temperature: fp(12.3), FeelTemperature: fp(11.0), WindSpeedBft: ip(3), StationID: ip(6275)},
		{Timestamp: ts(11, 50)},
		{Temperature: fp(13.0), StationID: ip(6275)},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Measurement{}, "ID")); diff != "" {
		t.Fatalf("measurements mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMeasurements_TiesKeepFeedOrder(t *testing.T) {
	p := decodeSample(t, `{"actual":{"stationmeasurements":[
		{"stationid": 1, "timestamp": "2024-03-01T12:00:00"},
		{"stationid": 2, "timestamp": "2024-03-01T12:00:00"},
		{"stationid": 3, "timestamp": "2024-03-01T12:00:00"}
	]}}`)

	got, err := ExtractMeasurements(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, m := range got {
		if *m.StationID != int64(i+1) {
			t.Fatalf("position %d: expected station %d, got %d", i, i+1, *m.StationID)
		}
	}
}

func TestExtractStations(t *testing.T) {
	p := decodeSample(t, samplePayload)

	got, err := ExtractStations(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Station{
		{ID: ip(6275), Name: sp("Meetstation Arcen"), Latitude: fp(51.5), Longitude: fp(6.2), Region: sp("Venlo")},
		{ID: ip(6320), Name: sp("Meetstation Lichteiland Goeree"), Latitude: fp(51.9), Longitude: fp(3.7), Region: sp("Noordzee")},
		{Name: sp("Unnamed")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("stations mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EmptyCollection(t *testing.T) {
	p := decodeSample(t, `{"actual":{"stationmeasurements":[]}}`)

	measurements, err := ExtractMeasurements(p)
	if err != nil || len(measurements) != 0 {
		t.Fatalf("expected no measurements, got %v (%v)", measurements, err)
	}
	stations, err := ExtractStations(p)
	if err != nil || stations == nil || len(stations) != 0 {
		t.Fatalf("expected empty station list, got %v (%v)", stations, err)
	}
}

func TestExtract_MissingCollection(t *testing.T) {
	p := decodeSample(t, `{"actual":{"sunrise":"06:00"}}`)

	var shapeErr *ShapeError
	if _, err := ExtractMeasurements(p); !errors.As(err, &shapeErr) {
		t.Fatalf("measurements: expected ShapeError, got %v", err)
	}
	if _, err := ExtractStations(p); !errors.As(err, &shapeErr) {
		t.Fatalf("stations: expected ShapeError, got %v", err)
	}
}

func sp(v string) *string { return &v }
