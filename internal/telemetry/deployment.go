package telemetry

import "time"

// Deployment is a geofence assignment for a buoy: the center of the allowed
// area and the radius within which the buoy is expected to remain.
//
// At most one deployment is active per buoy; saving a new one replaces the
// prior assignment (last-write-wins, no history retained).
type Deployment struct {
	// BuoyID identifies the deployed buoy.
	BuoyID int `json:"buoyId"`

	// Lat and Lon are the center of the allowed area in WGS-84 degrees.
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`

	// AllowedRadiusMeters is the geofence radius.
	AllowedRadiusMeters float64 `json:"allowedRadiusMeters"`

	// DeployedAtMs is the deployment time in Unix milliseconds.
	DeployedAtMs int64 `json:"deployedAt"`
}

// DeployedAtTime returns the deployment time as a time.Time.
func (d *Deployment) DeployedAtTime() time.Time {
	return time.UnixMilli(d.DeployedAtMs)
}
