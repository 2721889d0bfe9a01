package store

import (
	"context"
	"sync"
	"time"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/telemetry"
)

// MemoryStore keeps all readings in process memory.
//
// A read-write mutex guards the source map; each source carries its own lock
// so writers to different sources do not contend. All reads return copies,
// never the live lists.
//
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[int]*sourceSeries

	depMu       sync.RWMutex
	deployments map[int]telemetry.Deployment

	retention time.Duration
	now       func() time.Time
}

// sourceSeries is the per-source ordered reading list. Insertion order is the
// tie-break for equal timestamps, so appends never reorder.
type sourceSeries struct {
	mu       sync.Mutex
	readings []telemetry.Reading
}

// NewMemoryStore creates an empty in-memory store with the given retention
// window. Zero means the default seven days.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention == 0 {
		retention = config.DefaultRetention
	}
	return &MemoryStore{
		sources:     make(map[int]*sourceSeries),
		deployments: make(map[int]telemetry.Deployment),
		retention:   retention,
		now:         time.Now,
	}
}

// Update appends each non-nil reading, then compacts the affected sources
// down to the retention window. A source compacted to empty is forgotten
// entirely, so expiry and never-seen are indistinguishable to readers.
func (s *MemoryStore) Update(ctx context.Context, readings []*telemetry.Reading) error {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	touched := make(map[int]*sourceSeries)

	for _, r := range readings {
		if r == nil {
			continue
		}

		src := s.series(r.SourceID)

		src.mu.Lock()
		src.readings = append(src.readings, *r)
		src.mu.Unlock()

		touched[r.SourceID] = src
	}

	for id, src := range touched {
		src.mu.Lock()
		src.readings = compact(src.readings, cutoff)
		empty := len(src.readings) == 0
		src.mu.Unlock()

		if empty {
			s.mu.Lock()
			if cur, ok := s.sources[id]; ok && cur == src {
				delete(s.sources, id)
			}
			s.mu.Unlock()
		}
	}

	return nil
}

// History returns copies of all retained readings for the source.
func (s *MemoryStore) History(ctx context.Context, sourceID int) ([]telemetry.Reading, error) {
	src, ok := s.lookup(sourceID)
	if !ok {
		return nil, ErrUnknownSource
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()

	src.mu.Lock()
	out := make([]telemetry.Reading, 0, len(src.readings))
	for _, r := range src.readings {
		if r.TimestampMs >= cutoff {
			out = append(out, r)
		}
	}
	src.mu.Unlock()

	if len(out) == 0 {
		return nil, ErrUnknownSource
	}

	sortByTimestamp(out)
	return out, nil
}

// Latest returns the most recent retained reading, optionally restricted to
// one measurement type. Later insertions win timestamp ties.
func (s *MemoryStore) Latest(ctx context.Context, sourceID int, measurementType string) (*telemetry.Reading, error) {
	src, ok := s.lookup(sourceID)
	if !ok {
		return nil, ErrUnknownSource
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()

	src.mu.Lock()
	defer src.mu.Unlock()

	var latest *telemetry.Reading
	known := false
	for i := range src.readings {
		r := &src.readings[i]
		if r.TimestampMs < cutoff {
			continue
		}
		known = true
		if measurementType != "" && r.Type != measurementType {
			continue
		}
		if latest == nil || r.TimestampMs >= latest.TimestampMs {
			latest = r
		}
	}

	if !known {
		return nil, ErrUnknownSource
	}
	if latest == nil {
		return nil, nil
	}

	out := *latest
	return &out, nil
}

// SaveDeployment replaces any prior deployment for the buoy.
func (s *MemoryStore) SaveDeployment(ctx context.Context, dep *telemetry.Deployment) error {
	s.depMu.Lock()
	s.deployments[dep.BuoyID] = *dep
	s.depMu.Unlock()
	return nil
}

// Deployment returns a copy of the active deployment, if any.
func (s *MemoryStore) Deployment(ctx context.Context, buoyID int) (*telemetry.Deployment, bool, error) {
	s.depMu.RLock()
	dep, ok := s.deployments[buoyID]
	s.depMu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	return &dep, true, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// series returns the list for the source, creating it if needed.
func (s *MemoryStore) series(sourceID int) *sourceSeries {
	s.mu.RLock()
	src, ok := s.sources[sourceID]
	s.mu.RUnlock()
	if ok {
		return src
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok = s.sources[sourceID]; ok {
		return src
	}
	src = &sourceSeries{}
	s.sources[sourceID] = src
	return src
}

func (s *MemoryStore) lookup(sourceID int) (*sourceSeries, bool) {
	s.mu.RLock()
	src, ok := s.sources[sourceID]
	s.mu.RUnlock()
	return src, ok
}

// compact drops readings older than the cutoff, preserving order.
func compact(readings []telemetry.Reading, cutoffMs int64) []telemetry.Reading {
	kept := readings[:0]
	for _, r := range readings {
		if r.TimestampMs >= cutoffMs {
			kept = append(kept, r)
		}
	}
	return kept
}

// sortByTimestamp orders readings by timestamp ascending. The sort is stable
// so insertion order survives as the tie-break.
func sortByTimestamp(readings []telemetry.Reading) {
	// Appends keep the list nearly sorted; insertion sort keeps the common
	// case cheap and is naturally stable.
	for i := 1; i < len(readings); i++ {
		for j := i; j > 0 && readings[j].TimestampMs < readings[j-1].TimestampMs; j-- {
			readings[j], readings[j-1] = readings[j-1], readings[j]
		}
	}
}
