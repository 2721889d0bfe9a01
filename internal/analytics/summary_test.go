package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/store"
	"github.com/seaward/buoyd/internal/telemetry"
)

func reading(typ string, value float64) telemetry.Reading {
	return telemetry.Reading{SourceID: 1, Type: typ, Value: value, TimestampMs: time.Now().UnixMilli()}
}

func TestSummarize_BasicStatistics(t *testing.T) {
	history := []telemetry.Reading{
		reading(telemetry.TypeTemperature, 10),
		reading(telemetry.TypeTemperature, 20),
		reading(telemetry.TypeTemperature, 30),
		reading(telemetry.TypePressure, 1.5),
	}

	s := Summarize(1, history)
	if s.Readings != 4 {
		t.Fatalf("expected 4 readings, got %d", s.Readings)
	}
	if len(s.Summaries) != 2 {
		t.Fatalf("expected 2 types, got %d", len(s.Summaries))
	}

	temp := s.Summaries[0]
	if temp.Type != telemetry.TypeTemperature {
		t.Fatalf("expected first-seen type first, got %s", temp.Type)
	}
	if temp.Count != 3 || temp.Sum != 60 || temp.Min != 10 || temp.Max != 30 || temp.Avg != 20 {
		t.Errorf("unexpected temperature summary: %+v", temp)
	}

	pressure := s.Summaries[1]
	if pressure.Count != 1 || pressure.Min != 1.5 || pressure.Max != 1.5 {
		t.Errorf("unexpected pressure summary: %+v", pressure)
	}
}

func TestSummarize_Percentiles(t *testing.T) {
	var history []telemetry.Reading
	for v := 1; v <= 100; v++ {
		history = append(history, reading(telemetry.TypeTemperature, float64(v)))
	}

	s := Summarize(1, history)
	temp := s.Summaries[0]
	if temp.P50 == nil || temp.P99 == nil {
		t.Fatal("expected percentiles present")
	}
	// Sketch relative accuracy is 1%; allow 5% slack on top.
	if math.Abs(*temp.P50-50) > 5 {
		t.Errorf("p50 = %f, expected near 50", *temp.P50)
	}
	if math.Abs(*temp.P99-99) > 5 {
		t.Errorf("p99 = %f, expected near 99", *temp.P99)
	}
	if *temp.P50 > *temp.P90 || *temp.P90 > *temp.P95 || *temp.P95 > *temp.P99 {
		t.Errorf("percentiles not monotone: %f %f %f %f", *temp.P50, *temp.P90, *temp.P95, *temp.P99)
	}
}

func TestSummarize_NegativeValues(t *testing.T) {
	history := []telemetry.Reading{
		reading(telemetry.TypeTemperature, -5),
		reading(telemetry.TypeTemperature, 5),
	}

	s := Summarize(1, history)
	temp := s.Summaries[0]
	if temp.Min != -5 || temp.Max != 5 || temp.Avg != 0 {
		t.Errorf("unexpected summary over signed values: %+v", temp)
	}
}

func TestSummarize_EmptyHistory(t *testing.T) {
	s := Summarize(1, nil)
	if s.Readings != 0 || len(s.Summaries) != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}

func TestSummarizer_UnknownSourcePassesThrough(t *testing.T) {
	st := store.NewMemoryStore(0)
	defer st.Close()

	_, err := NewSummarizer(st).Summarize(context.Background(), 42)
	if !errors.IsUnknownSource(err) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestSummarizer_ReadsStoreHistory(t *testing.T) {
	st := store.NewMemoryStore(0)
	defer st.Close()

	ctx := context.Background()
	ts := time.Now().UnixMilli()
	st.Update(ctx, []*telemetry.Reading{
		{SourceID: 7, Type: telemetry.TypeSalinity, Value: 34, TimestampMs: ts},
		{SourceID: 7, Type: telemetry.TypeSalinity, Value: 36, TimestampMs: ts + 1},
	})

	s, err := NewSummarizer(st).Summarize(ctx, 7)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.SourceID != 7 || s.Readings != 2 {
		t.Fatalf("unexpected summary shell: %+v", s)
	}
	if got := s.Summaries[0]; got.Avg != 35 {
		t.Errorf("expected avg 35, got %+v", got)
	}
}

func TestTracker_ObserveAndSnapshot(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Snapshot(1); ok {
		t.Fatal("expected no snapshot before any observation")
	}

	tr.Observe(&telemetry.Reading{SourceID: 1, Type: telemetry.TypeTemperature, Value: 20})
	tr.Observe(&telemetry.Reading{SourceID: 1, Type: telemetry.TypeTemperature, Value: 22})
	tr.Observe(&telemetry.Reading{SourceID: 1, Type: telemetry.TypePressure, Value: 1.0})
	tr.Observe(nil)

	s, ok := tr.Snapshot(1)
	if !ok {
		t.Fatal("expected snapshot")
	}
	if s.Readings != 3 || len(s.Summaries) != 2 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	// Snapshot orders types alphabetically.
	if s.Summaries[0].Type != telemetry.TypePressure {
		t.Errorf("expected pressure first, got %s", s.Summaries[0].Type)
	}
	if s.Summaries[1].Avg != 21 {
		t.Errorf("expected temperature avg 21, got %+v", s.Summaries[1])
	}
}
