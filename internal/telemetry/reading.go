// Package telemetry defines the core data units flowing through buoyd:
// sensor readings reported by buoys and geofence deployments assigned to them.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/seaward/buoyd/internal/errors"
)

// Well-known measurement types. The set is open: producers may report types
// not listed here and stores must accept them unchanged.
const (
	TypeTemperature = "temperature"
	TypePressure    = "pressure"
	TypeLatitude    = "latitude"
	TypeLongitude   = "longitude"
	TypeSalinity    = "salinity"
)

// PointFields are the fields that together form one complete multi-field
// point in the time-series backend. A timestamp bucket missing any of them
// is considered partial and is not reconstructed into a record.
var PointFields = []string{TypeTemperature, TypePressure, TypeLatitude, TypeLongitude}

// Reading is a single scalar observation reported by a buoy.
// A Reading is immutable after creation.
type Reading struct {
	// SourceID identifies the reporting buoy.
	SourceID int `json:"sourceId"`

	// Type is the measurement type tag (open set, see the Type constants).
	Type string `json:"measurementType"`

	// Value is the observed scalar.
	Value float64 `json:"value"`

	// TimestampMs is the observation time in Unix milliseconds (UTC).
	TimestampMs int64 `json:"timestamp"`
}

// TimestampTime returns the reading timestamp as a time.Time.
func (r *Reading) TimestampTime() time.Time {
	return time.UnixMilli(r.TimestampMs)
}

// readingWire mirrors the JSON shapes the feed produces. The legacy feed
// writes "measurementVal" and "msSinceEpoch"; newer producers write "value"
// and "timestamp". Timestamps arrive either as integer epoch-millis or as an
// ISO-8601 string, and may be absent entirely.
type readingWire struct {
	SourceID        *int            `json:"sourceId"`
	BuoyID          *int            `json:"buoyId"`
	Type            string          `json:"measurementType"`
	Value           *float64        `json:"value"`
	MeasurementVal  *float64        `json:"measurementVal"`
	Timestamp       json.RawMessage `json:"timestamp"`
	MsSinceEpoch    json.RawMessage `json:"msSinceEpoch"`
}

// DecodeReading decodes a single reading from its JSON wire form.
// Missing timestamps default to the current time.
func DecodeReading(data []byte) (*Reading, error) {
	var w readingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedReading, err.Error())
	}
	return w.toReading()
}

func (w *readingWire) toReading() (*Reading, error) {
	r := &Reading{Type: w.Type}

	switch {
	case w.SourceID != nil:
		r.SourceID = *w.SourceID
	case w.BuoyID != nil:
		r.SourceID = *w.BuoyID
	default:
		return nil, errors.NewMissingField("sourceId")
	}

	if w.Type == "" {
		return nil, errors.NewMissingField("measurementType")
	}

	switch {
	case w.Value != nil:
		r.Value = *w.Value
	case w.MeasurementVal != nil:
		r.Value = *w.MeasurementVal
	default:
		return nil, errors.NewMissingField("value")
	}

	raw := w.Timestamp
	if raw == nil {
		raw = w.MsSinceEpoch
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return nil, err
	}
	r.TimestampMs = ts

	return r, nil
}

// parseTimestamp accepts an integer epoch-millis value or an ISO-8601 string.
// A nil or JSON null raw value defaults to now.
func parseTimestamp(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now().UnixMilli(), nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return ms, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.NewInvalidValue("timestamp", string(raw), "expected epoch-millis or ISO-8601")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, errors.NewInvalidValue("timestamp", s, "not a valid ISO-8601 time")
	}
	return t.UnixMilli(), nil
}

// DecodeBatch decodes a JSON array of readings. Null entries in the array are
// returned as nil pointers so callers can preserve the skip-nulls contract of
// Store.Update.
func DecodeBatch(data []byte) ([]*Reading, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedReading, err.Error())
	}

	readings := make([]*Reading, 0, len(raws))
	for _, raw := range raws {
		if string(raw) == "null" {
			readings = append(readings, nil)
			continue
		}
		r, err := DecodeReading(raw)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}
