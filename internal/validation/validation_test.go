package validation

import (
	"math"
	"testing"

	"github.com/seaward/buoyd/internal/telemetry"
)

func valid() *telemetry.Reading {
	return &telemetry.Reading{SourceID: 1, Type: telemetry.TypeTemperature, Value: 20.5, TimestampMs: 1}
}

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*telemetry.Reading)
		wantErr bool
	}{
		{"valid", func(r *telemetry.Reading) {}, false},
		{"negative source", func(r *telemetry.Reading) { r.SourceID = -1 }, true},
		{"empty type", func(r *telemetry.Reading) { r.Type = "" }, true},
		{"type with spaces", func(r *telemetry.Reading) { r.Type = "water temp" }, true},
		{"hyphenated type", func(r *telemetry.Reading) { r.Type = "wave-height" }, false},
		{"nan value", func(r *telemetry.Reading) { r.Value = math.NaN() }, true},
		{"inf value", func(r *telemetry.Reading) { r.Value = math.Inf(1) }, true},
		{"negative timestamp", func(r *telemetry.Reading) { r.TimestampMs = -5 }, true},
		{"latitude in range", func(r *telemetry.Reading) { r.Type = telemetry.TypeLatitude; r.Value = 89.9 }, false},
		{"latitude out of range", func(r *telemetry.Reading) { r.Type = telemetry.TypeLatitude; r.Value = 91 }, true},
		{"longitude out of range", func(r *telemetry.Reading) { r.Type = telemetry.TypeLongitude; r.Value = -181 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := ValidateReading(r)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReading() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := ValidateReading(nil); err == nil {
		t.Error("expected error for nil reading")
	}
}

func TestValidateDeployment(t *testing.T) {
	tests := []struct {
		name    string
		dep     telemetry.Deployment
		wantErr bool
	}{
		{"valid", telemetry.Deployment{BuoyID: 1, Lat: 42, Lon: -70, AllowedRadiusMeters: 50}, false},
		{"negative id", telemetry.Deployment{BuoyID: -1, Lat: 42, Lon: -70, AllowedRadiusMeters: 50}, true},
		{"lat out of range", telemetry.Deployment{BuoyID: 1, Lat: 95, Lon: -70, AllowedRadiusMeters: 50}, true},
		{"lon out of range", telemetry.Deployment{BuoyID: 1, Lat: 42, Lon: 190, AllowedRadiusMeters: 50}, true},
		{"zero radius", telemetry.Deployment{BuoyID: 1, Lat: 42, Lon: -70, AllowedRadiusMeters: 0}, true},
		{"negative radius", telemetry.Deployment{BuoyID: 1, Lat: 42, Lon: -70, AllowedRadiusMeters: -3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := tt.dep
			err := ValidateDeployment(&dep)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeployment() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
