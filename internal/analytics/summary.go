// Package analytics computes per-measurement-type summary statistics over a
// source's retained history.
package analytics

import (
	"context"
	"sort"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/seaward/buoyd/internal/store"
	"github.com/seaward/buoyd/internal/telemetry"
)

// TypeSummary is the aggregate of one measurement type.
type TypeSummary struct {
	Type  string  `json:"measurementType"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`

	// Percentiles (nil when the sketch could not be built)
	P50 *float64 `json:"p50,omitempty"`
	P90 *float64 `json:"p90,omitempty"`
	P95 *float64 `json:"p95,omitempty"`
	P99 *float64 `json:"p99,omitempty"`
}

// SourceSummary aggregates one source's history, keyed by measurement type.
type SourceSummary struct {
	SourceID  int           `json:"sourceId"`
	Readings  int           `json:"readings"`
	Summaries []TypeSummary `json:"summaries"`
}

// accumulator folds readings of one type into running statistics plus a
// DDSketch for percentiles.
type accumulator struct {
	typ    string
	count  int64
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newAccumulator(typ string) *accumulator {
	acc := &accumulator{typ: typ}
	// Default relative accuracy of 1%
	if sketch, err := ddsketch.NewDefaultDDSketch(0.01); err == nil {
		acc.sketch = sketch
	}
	return acc
}

func (a *accumulator) add(value float64) {
	if a.count == 0 || value < a.min {
		a.min = value
	}
	if a.count == 0 || value > a.max {
		a.max = value
	}
	a.count++
	a.sum += value

	if a.sketch != nil {
		a.sketch.Add(value)
	}
}

func (a *accumulator) summary() TypeSummary {
	s := TypeSummary{
		Type:  a.typ,
		Count: a.count,
		Sum:   a.sum,
		Min:   a.min,
		Max:   a.max,
	}
	if a.count > 0 {
		s.Avg = a.sum / float64(a.count)
	}

	if a.sketch != nil && a.count > 0 {
		p50, err50 := a.sketch.GetValueAtQuantile(0.50)
		p90, err90 := a.sketch.GetValueAtQuantile(0.90)
		p95, err95 := a.sketch.GetValueAtQuantile(0.95)
		p99, err99 := a.sketch.GetValueAtQuantile(0.99)
		if err50 == nil && err90 == nil && err95 == nil && err99 == nil {
			s.P50, s.P90, s.P95, s.P99 = &p50, &p90, &p95, &p99
		}
	}
	return s
}

// Summarizer builds summaries from a Store's read path.
type Summarizer struct {
	store store.Store
}

func NewSummarizer(st store.Store) *Summarizer {
	return &Summarizer{store: st}
}

// Summarize aggregates the source's retained history by measurement type.
// Store errors (including UnknownSource) pass through unchanged.
func (s *Summarizer) Summarize(ctx context.Context, sourceID int) (*SourceSummary, error) {
	history, err := s.store.History(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return Summarize(sourceID, history), nil
}

// Summarize aggregates an already-fetched history. Types appear in first-seen
// order so output is stable for a given history.
func Summarize(sourceID int, history []telemetry.Reading) *SourceSummary {
	accs := make(map[string]*accumulator)
	var order []string

	for _, r := range history {
		acc, ok := accs[r.Type]
		if !ok {
			acc = newAccumulator(r.Type)
			accs[r.Type] = acc
			order = append(order, r.Type)
		}
		acc.add(r.Value)
	}

	out := &SourceSummary{SourceID: sourceID, Readings: len(history)}
	for _, typ := range order {
		out.Summaries = append(out.Summaries, accs[typ].summary())
	}
	return out
}

// Tracker maintains live accumulators fed at ingest time, one per
// (source, type) pair, for monitoring surfaces that cannot afford a full
// history scan. Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	accs map[int]map[string]*accumulator
}

func NewTracker() *Tracker {
	return &Tracker{accs: make(map[int]map[string]*accumulator)}
}

// Observe folds one reading into the live aggregate.
func (t *Tracker) Observe(r *telemetry.Reading) {
	if r == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	byType, ok := t.accs[r.SourceID]
	if !ok {
		byType = make(map[string]*accumulator)
		t.accs[r.SourceID] = byType
	}
	acc, ok := byType[r.Type]
	if !ok {
		acc = newAccumulator(r.Type)
		byType[r.Type] = acc
	}
	acc.add(r.Value)
}

// Snapshot returns the live aggregates for one source, or ok=false if the
// source has never been observed.
func (t *Tracker) Snapshot(sourceID int) (*SourceSummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byType, ok := t.accs[sourceID]
	if !ok {
		return nil, false
	}

	out := &SourceSummary{SourceID: sourceID}
	for _, acc := range byType {
		s := acc.summary()
		out.Readings += int(s.Count)
		out.Summaries = append(out.Summaries, s)
	}
	sort.Slice(out.Summaries, func(i, j int) bool {
		return out.Summaries[i].Type < out.Summaries[j].Type
	})
	return out, true
}
