// Package validation provides centralized input validation for buoyd.
package validation

import (
	"math"
	"strings"
	"unicode"

	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/telemetry"
)

// maxTypeLength bounds a measurement type name. The set of types is open,
// but a type is still a short identifier, not a payload.
const maxTypeLength = 64

// ValidateMeasurementType rejects empty, oversized, or non-identifier type
// names. Letters, digits, hyphens and underscores are allowed.
func ValidateMeasurementType(typ string) error {
	if typ == "" {
		return errors.NewMissingField("measurementType")
	}
	if len(typ) > maxTypeLength {
		return errors.NewInvalidValue("measurementType", typ, "too long")
	}
	for _, r := range typ {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			continue
		}
		return errors.NewInvalidValue("measurementType", typ, "invalid character")
	}
	return nil
}

// ValidateReading checks one decoded reading before it reaches a store.
func ValidateReading(r *telemetry.Reading) error {
	if r == nil {
		return errors.NewMissingField("reading")
	}
	if r.SourceID < 0 {
		return errors.NewInvalidValue("sourceId", r.SourceID, "must not be negative")
	}
	if err := ValidateMeasurementType(r.Type); err != nil {
		return err
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return errors.NewInvalidValue("value", r.Value, "must be finite")
	}
	if r.TimestampMs < 0 {
		return errors.NewInvalidValue("timestamp", r.TimestampMs, "must not be negative")
	}

	// Position fields carry WGS-84 degrees.
	switch strings.ToLower(r.Type) {
	case telemetry.TypeLatitude:
		if r.Value < -90 || r.Value > 90 {
			return errors.NewInvalidValue("value", r.Value, "latitude out of range")
		}
	case telemetry.TypeLongitude:
		if r.Value < -180 || r.Value > 180 {
			return errors.NewInvalidValue("value", r.Value, "longitude out of range")
		}
	}
	return nil
}

// ValidateDeployment checks a geofence assignment before it is saved.
func ValidateDeployment(dep *telemetry.Deployment) error {
	if dep == nil {
		return errors.NewMissingField("deployment")
	}
	if dep.BuoyID < 0 {
		return errors.NewInvalidValue("buoyId", dep.BuoyID, "must not be negative")
	}
	if dep.Lat < -90 || dep.Lat > 90 {
		return errors.NewInvalidValue("latitude", dep.Lat, "out of range")
	}
	if dep.Lon < -180 || dep.Lon > 180 {
		return errors.NewInvalidValue("longitude", dep.Lon, "out of range")
	}
	if dep.AllowedRadiusMeters <= 0 || math.IsNaN(dep.AllowedRadiusMeters) || math.IsInf(dep.AllowedRadiusMeters, 0) {
		return errors.NewInvalidValue("allowedRadiusMeters", dep.AllowedRadiusMeters, "must be positive")
	}
	return nil
}
