package marketfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// Errors for malformed feed records.
var (
	// ErrMissingID is returned when a record carries no recognizable ID under
	// any of the known field names.
	ErrMissingID = errors.New("record has no id field")

	// ErrMissingEndpoint is returned when an edge record lacks an endpoint.
	ErrMissingEndpoint = errors.New("edge record is missing an endpoint")
)

// Feed records decode into raw field maps so that field-name variants can be
// resolved in one place.

type feedCauldron struct {
	fields map[string]json.RawMessage
}

func (c *feedCauldron) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.fields)
}

func (c *feedCauldron) normalize() (*cauldron.Cauldron, error) {
	id, ok := pickString(c.fields, "id", "cauldronId", "cauldron_id")
	if !ok {
		return nil, ErrMissingID
	}

	name, _ := pickString(c.fields, "name", "cauldronName", "cauldron_name")
	nodeID, _ := pickString(c.fields, "nodeId", "node_id", "node")

	maxVolume, _ := pickFloat(c.fields, "maxVolume", "max_volume", "capacity")
	fillRate, _ := pickFloat(c.fields, "fillRate", "fill_rate")
	currentVolume, _ := pickFloat(c.fields, "currentVolume", "current_volume", "level")

	lat, _ := pickFloat(c.fields, "lat", "latitude")
	lon, _ := pickFloat(c.fields, "lon", "lng", "longitude")
	if raw, ok := c.fields["location"]; ok {
		var loc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &loc); err == nil {
			lat, _ = pickFloat(loc, "lat", "latitude")
			lon, _ = pickFloat(loc, "lon", "lng", "longitude")
		}
	}

	return &cauldron.Cauldron{
		ID:            id,
		Name:          name,
		MaxVolume:     maxVolume,
		FillRate:      fillRate,
		CurrentVolume: currentVolume,
		NodeID:        nodeID,
		Location:      cauldron.Point{Lat: lat, Lon: lon},
	}, nil
}

type feedReading struct {
	fields map[string]json.RawMessage
}

func (r *feedReading) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.fields)
}

func (r *feedReading) normalize(cauldronID string) (cauldron.Reading, error) {
	if id, ok := pickString(r.fields, "cauldronId", "cauldron_id", "id"); ok {
		cauldronID = id
	}

	ts, ok := pickString(r.fields, "timestamp", "measuredAt", "measured_at", "ts")
	if !ok {
		return cauldron.Reading{}, errors.New("reading has no timestamp field")
	}
	timestamp, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return cauldron.Reading{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}

	volume, ok := pickFloat(r.fields, "volume", "level", "value")
	if !ok {
		return cauldron.Reading{}, errors.New("reading has no volume field")
	}

	return cauldron.Reading{
		CauldronID: cauldronID,
		Timestamp:  timestamp,
		Volume:     volume,
	}, nil
}

type feedEdge struct {
	fields map[string]json.RawMessage
}

func (e *feedEdge) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &e.fields)
}

func (e *feedEdge) normalize() (cauldron.Edge, error) {
	from, ok := pickString(e.fields, "from", "source", "a")
	if !ok {
		return cauldron.Edge{}, ErrMissingEndpoint
	}
	to, ok := pickString(e.fields, "to", "target", "b")
	if !ok {
		return cauldron.Edge{}, ErrMissingEndpoint
	}

	minutes, ok := pickFloat(e.fields, "travelMinutes", "travel_minutes", "minutes", "weight")
	if !ok {
		return cauldron.Edge{}, errors.New("edge record has no travel time field")
	}

	return cauldron.Edge{From: from, To: to, TravelMinutes: minutes}, nil
}

type feedCourier struct {
	fields map[string]json.RawMessage
}

func (c *feedCourier) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.fields)
}

func (c *feedCourier) normalize() (*cauldron.Courier, error) {
	id, ok := pickString(c.fields, "id", "courierId", "courier_id")
	if !ok {
		return nil, ErrMissingID
	}

	name, _ := pickString(c.fields, "name", "courierName", "courier_name")
	capacity, _ := pickFloat(c.fields, "capacity", "maxCarry", "max_carry")

	return &cauldron.Courier{ID: id, Name: name, Capacity: capacity}, nil
}

// pickString returns the first of the named fields that decodes as a
// non-empty string.
func pickString(fields map[string]json.RawMessage, names ...string) (string, bool) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

// pickFloat returns the first of the named fields that decodes as a number.
// String-encoded numbers are accepted; some exporters quote everything.
func pickFloat(fields map[string]json.RawMessage, names ...string) (float64, bool) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
