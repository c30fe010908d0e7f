package weather

import (
	"sort"

	"github.com/google/uuid"
)

// ExtractMeasurements turns every feed entry into a Measurement with a fresh
// identifier. The result is ordered by timestamp, newest first, with unknown
// timestamps last; entries with equal timestamps keep their feed order.
func ExtractMeasurements(p *FeedPayload) ([]Measurement, error) {
	entries, err := p.entries()
	if err != nil {
		return nil, err
	}

	out := make([]Measurement, 0, len(entries))
	for _, e := range entries {
		out = append(out, Measurement{
			ID:                uuid.NewString(),
			Timestamp:         e.Timestamp.V,
			Temperature:       e.Temperature.V,
			GroundTemperature: e.GroundTemperature.V,
			FeelTemperature:   e.FeelTemperature.V,
			WindGusts:         e.WindGusts.V,
			WindSpeedBft:      e.WindSpeedBft.V,
			Humidity:          e.Humidity.V,
			Precipitation:     e.Precipitation.V,
			SolarPower:        e.SunPower.V,
			StationID:         e.StationID.V,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out, nil
}

// ExtractStations returns one Station per distinct station ID, ordered by ID
// ascending. When the feed lists a station more than once the first entry
// wins. Entries without an ID collapse into a single station placed last.
func ExtractStations(p *FeedPayload) ([]Station, error) {
	entries, err := p.entries()
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(entries))
	var (
		out    []Station
		nullID *Station
	)
	for _, e := range entries {
		st := Station{
			ID:        e.StationID.V,
			Name:      e.StationName.V,
			Latitude:  e.Lat.V,
			Longitude: e.Lon.V,
			Region:    e.Region.V,
		}
		if st.ID == nil {
			if nullID == nil {
				nullID = &st
			}
			continue
		}
		if _, dup := seen[*st.ID]; dup {
			continue
		}
		seen[*st.ID] = struct{}{}
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	if nullID != nil {
		out = append(out, *nullID)
	}
	if out == nil {
		out = []Station{}
	}
	return out, nil
}
