package geo

import (
	"math"
	"testing"

	"github.com/seaward/buoyd/internal/telemetry"
)

func TestDistanceMeters_Identical(t *testing.T) {
	if d := DistanceMeters(42.0, -70.0, 42.0, -70.0); d != 0 {
		t.Errorf("expected 0 for identical coordinates, got %f", d)
	}
}

func TestDistanceMeters_KnownDistances(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantMeters             float64
		tolerance              float64 // relative
	}{
		// One degree of latitude is ~111.19 km on a 6371 km sphere.
		{"one degree latitude", 0, 0, 1, 0, 111195, 0.01},
		// Boston Light to Graves Light, ~2.9 km.
		{"boston harbor", 42.3280, -70.8903, 42.3531, -70.8687, 3320, 0.05},
		{"short hop", 42.0, -70.0, 42.01, -70.01, 1387, 0.02},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if rel := math.Abs(got-tc.wantMeters) / tc.wantMeters; rel > tc.tolerance {
				t.Errorf("distance=%f, want %f within %.0f%%", got, tc.wantMeters, tc.tolerance*100)
			}
		})
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := DistanceMeters(42.0, -70.0, 43.5, -69.0)
	b := DistanceMeters(43.5, -69.0, 42.0, -70.0)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestIsOutsideFence(t *testing.T) {
	dep := &telemetry.Deployment{BuoyID: 1, Lat: 42.0, Lon: -70.0, AllowedRadiusMeters: 50}

	// ~1.3 km away, well outside a 50 m fence.
	if !IsOutsideFence(dep, 42.01, -70.01) {
		t.Error("expected position 1.3km away to be outside a 50m fence")
	}

	// ~14 m away, inside.
	if IsOutsideFence(dep, 42.0001, -70.0001) {
		t.Error("expected position 14m away to be inside a 50m fence")
	}

	// Exactly at center.
	if IsOutsideFence(dep, 42.0, -70.0) {
		t.Error("expected center position to be inside the fence")
	}
}
