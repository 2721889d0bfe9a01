package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/geo"
	"github.com/seaward/buoyd/internal/metrics"
	"github.com/seaward/buoyd/internal/telemetry"
	"github.com/seaward/buoyd/internal/validation"
)

// maxUpdateBody bounds an ingest request body.
const maxUpdateBody = 1 << 20

// handleUpdate ingests a JSON array of readings. Null entries are skipped,
// matching the queue feed's tolerance for sparse batches.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrMalformedReading, "read body"))
		return
	}

	readings, err := telemetry.DecodeBatch(body)
	if err != nil {
		if s.mtx != nil {
			s.mtx.RecordIngestFailure(metrics.ChannelHTTP, "decode")
		}
		s.writeError(w, err)
		return
	}

	accepted := 0
	for _, reading := range readings {
		if reading == nil {
			continue
		}
		if err := validation.ValidateReading(reading); err != nil {
			if s.mtx != nil {
				s.mtx.RecordIngestFailure(metrics.ChannelHTTP, "validate")
			}
			s.writeError(w, err)
			return
		}
		accepted++
	}

	start := s.now()
	if err := s.store.Update(r.Context(), readings); err != nil {
		if s.mtx != nil {
			s.mtx.RecordIngestFailure(metrics.ChannelHTTP, "apply")
		}
		s.writeError(w, err)
		return
	}
	if s.mtx != nil {
		s.mtx.ObserveStoreUpdate(s.now().Sub(start).Seconds())
		s.mtx.RecordIngest(metrics.ChannelHTTP, accepted)
	}

	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, errors.NewInvalidValue("id", r.PathValue("id"), "expected an integer"))
		return
	}

	history, err := s.store.History(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sourceId": id,
		"readings": history,
	})
}

// handleLatest distinguishes "unknown source" (404) from "known source, no
// data of that type yet" (200 with a no-data body).
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, errors.NewInvalidValue("id", r.PathValue("id"), "expected an integer"))
		return
	}
	measurementType := r.URL.Query().Get("type")

	latest, err := s.store.Latest(r.Context(), id, measurementType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"sourceId":        id,
			"measurementType": measurementType,
			"status":          "no data",
		})
		return
	}

	writeJSON(w, http.StatusOK, latest)
}

// deployRequest is the POST /deploy body. The fence center is not supplied
// by the caller; it is seeded from the buoy's latest reported position.
type deployRequest struct {
	BuoyID              int     `json:"buoyId"`
	AllowedRadiusMeters float64 `json:"allowedRadiusMeters"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.AllowedRadiusMeters <= 0 {
		s.writeError(w, errors.NewInvalidValue("allowedRadiusMeters", req.AllowedRadiusMeters, "must be positive"))
		return
	}

	lat, err := s.store.Latest(r.Context(), req.BuoyID, telemetry.TypeLatitude)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := s.store.Latest(r.Context(), req.BuoyID, telemetry.TypeLongitude)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if lat == nil || lon == nil {
		s.writeError(w, errors.Wrapf(errors.ErrNoPosition, "buoy %d has not reported a position", req.BuoyID))
		return
	}

	dep := &telemetry.Deployment{
		BuoyID:              req.BuoyID,
		Lat:                 lat.Value,
		Lon:                 lon.Value,
		AllowedRadiusMeters: req.AllowedRadiusMeters,
		DeployedAtMs:        s.now().UnixMilli(),
	}
	if err := validation.ValidateDeployment(dep); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SaveDeployment(r.Context(), dep); err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("deployment saved",
		"buoy_id", dep.BuoyID, "lat", dep.Lat, "lon", dep.Lon,
		"radius_m", dep.AllowedRadiusMeters)
	writeJSON(w, http.StatusOK, dep)
}

// handleDeployment reports the deployment plus the buoy's current geofence
// status evaluated against its latest reported position.
func (s *Server) handleDeployment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, errors.NewInvalidValue("id", r.PathValue("id"), "expected an integer"))
		return
	}

	dep, found, err := s.store.Deployment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "no deployment for buoy " + r.PathValue("id"),
		})
		return
	}

	resp := map[string]any{"deployment": dep}

	lat, latErr := s.store.Latest(r.Context(), id, telemetry.TypeLatitude)
	lon, lonErr := s.store.Latest(r.Context(), id, telemetry.TypeLongitude)
	if latErr == nil && lonErr == nil && lat != nil && lon != nil {
		resp["position"] = map[string]any{"latitude": lat.Value, "longitude": lon.Value}
		resp["withinBounds"] = !geo.IsOutsideFence(dep, lat.Value, lon.Value)
	} else {
		// Deployed but position readings have aged out or never arrived.
		resp["status"] = "no position"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, errors.NewInvalidValue("id", r.PathValue("id"), "expected an integer"))
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if typ := r.URL.Query().Get("type"); typ != "" {
		for _, ts := range summary.Summaries {
			if ts.Type == typ {
				writeJSON(w, http.StatusOK, ts)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sourceId":        id,
			"measurementType": typ,
			"status":          "no data",
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBody))
	if err != nil {
		return errors.Wrap(errors.ErrMalformedReading, "read body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrap(errors.ErrMalformedReading, err.Error())
	}
	return nil
}
