package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/telemetry"
)

func reading(id int, typ string, value float64, tsMs int64) *telemetry.Reading {
	return &telemetry.Reading{SourceID: id, Type: typ, Value: value, TimestampMs: tsMs}
}

func TestMemoryStore_UpdateAndHistory(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	if err := s.Update(ctx, []*telemetry.Reading{
		reading(1, "temperature", 20.5, now),
		reading(1, "salinity", 35.0, now),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	history, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(history))
	}
	// Equal timestamps: submission order preserved.
	if history[0].Type != "temperature" || history[1].Type != "salinity" {
		t.Errorf("unexpected order: %s, %s", history[0].Type, history[1].Type)
	}

	if _, err := s.History(ctx, 2); !errors.IsUnknownSource(err) {
		t.Errorf("expected ErrUnknownSource for id=2, got %v", err)
	}
}

func TestMemoryStore_HistoryOrdering(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	base := time.Now().UnixMilli()
	// Deliberately out of timestamp order.
	s.Update(ctx, []*telemetry.Reading{
		reading(1, "temperature", 3, base+3000),
		reading(1, "temperature", 1, base+1000),
		reading(1, "temperature", 2, base+2000),
	})

	history, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for i, want := range []float64{1, 2, 3} {
		if history[i].Value != want {
			t.Errorf("position %d: expected value=%f, got %f", i, want, history[i].Value)
		}
	}
}

func TestMemoryStore_NilReadingsSkipped(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	s.Update(ctx, []*telemetry.Reading{
		reading(1, "temperature", 20.5, now),
		nil,
		reading(1, "pressure", 1.01, now),
	})

	history, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected nil entry skipped, got %d readings", len(history))
	}
}

func TestMemoryStore_Retention(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	old := current.Add(-8 * 24 * time.Hour).UnixMilli()
	fresh := current.Add(-time.Hour).UnixMilli()

	s.Update(ctx, []*telemetry.Reading{
		reading(1, "temperature", 1, old),
		reading(1, "temperature", 2, fresh),
	})

	history, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Value != 2 {
		t.Errorf("expected only the fresh reading, got %+v", history)
	}

	// Let the remaining reading age out; reads must exclude it even without
	// an intervening update.
	current = current.Add(8 * 24 * time.Hour)
	if _, err := s.History(ctx, 1); !errors.IsUnknownSource(err) {
		t.Errorf("expected ErrUnknownSource after expiry, got %v", err)
	}
	if _, err := s.Latest(ctx, 1, ""); !errors.IsUnknownSource(err) {
		t.Errorf("expected ErrUnknownSource from Latest after expiry, got %v", err)
	}
}

func TestMemoryStore_ExpiredSourceForgottenOnUpdate(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	s.Update(ctx, []*telemetry.Reading{reading(1, "temperature", 1, current.UnixMilli())})

	current = current.Add(8 * 24 * time.Hour)
	// Touching the source compacts it to empty and forgets the key.
	s.Update(ctx, []*telemetry.Reading{reading(1, "temperature", 2, current.Add(-9*24*time.Hour).UnixMilli())})

	if _, ok := s.lookup(1); ok {
		t.Error("expected source key to be forgotten after compacting to empty")
	}
}

func TestMemoryStore_Latest(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	base := time.Now().UnixMilli()
	s.Update(ctx, []*telemetry.Reading{
		reading(1, "temperature", 20.5, base),
		reading(1, "temperature", 21.0, base+1000),
		reading(1, "salinity", 35.0, base+2000),
	})

	latest, err := s.Latest(ctx, 1, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Type != "salinity" {
		t.Errorf("expected most recent across types, got %s", latest.Type)
	}

	latest, err = s.Latest(ctx, 1, "temperature")
	if err != nil {
		t.Fatalf("latest temperature: %v", err)
	}
	if latest.Value != 21.0 {
		t.Errorf("expected latest temperature=21.0, got %f", latest.Value)
	}

	// Known source, type never reported: absent, not an error.
	latest, err = s.Latest(ctx, 1, "pressure")
	if err != nil {
		t.Fatalf("latest pressure: %v", err)
	}
	if latest != nil {
		t.Errorf("expected absent reading for unreported type, got %+v", latest)
	}

	if _, err := s.Latest(ctx, 99, ""); !errors.IsUnknownSource(err) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestMemoryStore_LatestTieBreak(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	ts := time.Now().UnixMilli()
	s.Update(ctx, []*telemetry.Reading{reading(1, "temperature", 1, ts)})
	s.Update(ctx, []*telemetry.Reading{reading(1, "temperature", 2, ts)})

	latest, err := s.Latest(ctx, 1, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Value != 2 {
		t.Errorf("expected later insertion to win the tie, got value=%f", latest.Value)
	}
}

func TestMemoryStore_HistoryReturnsCopies(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	s.Update(ctx, []*telemetry.Reading{reading(1, "temperature", 20.5, time.Now().UnixMilli())})

	first, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	first[0].Value = -1

	second, err := s.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if second[0].Value != 20.5 {
		t.Error("mutating one history result affected a later read")
	}
}

func TestMemoryStore_Deployments(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	if _, ok, err := s.Deployment(ctx, 1); err != nil || ok {
		t.Fatalf("expected no deployment, got ok=%v err=%v", ok, err)
	}

	dep := &telemetry.Deployment{BuoyID: 1, Lat: 42.0, Lon: -70.0, AllowedRadiusMeters: 50, DeployedAtMs: 1}
	if err := s.SaveDeployment(ctx, dep); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Last write wins.
	dep2 := &telemetry.Deployment{BuoyID: 1, Lat: 43.0, Lon: -69.0, AllowedRadiusMeters: 100, DeployedAtMs: 2}
	if err := s.SaveDeployment(ctx, dep2); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.Deployment(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("deployment: ok=%v err=%v", ok, err)
	}
	if got.Lat != 43.0 || got.AllowedRadiusMeters != 100 {
		t.Errorf("expected replacement deployment, got %+v", got)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(7 * 24 * time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Update(ctx, []*telemetry.Reading{
					reading(id, "temperature", float64(i), time.Now().UnixMilli()),
				})
				s.History(ctx, id)
				s.Latest(ctx, id, "temperature")
			}
		}(w % 4)
	}
	wg.Wait()

	for id := 0; id < 4; id++ {
		history, err := s.History(ctx, id)
		if err != nil {
			t.Fatalf("history %d: %v", id, err)
		}
		if len(history) != 200 {
			t.Errorf("source %d: expected 200 readings, got %d", id, len(history))
		}
	}
}
