package planlog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voltroute/planner/core/events"
	"github.com/voltroute/planner/internal/eventbus"
)

func sampleRecord(ts time.Time, id string, feasible int) Record {
	return Record{
		Timestamp:   ts,
		PlanID:      id,
		Source:      "48.85000,2.35000",
		Destination: "45.76000,4.83000",
		Routes:      3,
		Feasible:    feasible,
		Stops:       1,
		Duration:    120 * time.Millisecond,
	}
}

func runStoreTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	recs := []Record{
		sampleRecord(now.Add(-2*time.Hour), "p1", 3),
		sampleRecord(now.Add(-time.Hour), "p2", 0),
		sampleRecord(now, "p3", 2),
	}
	recs[1].Err = "no feasible route"
	for _, r := range recs {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	out, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}

	out, err = store.Query(ctx, Query{Start: now.Add(-90 * time.Minute)})
	if err != nil {
		t.Fatalf("query start: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("start filter: expected 2 records, got %d", len(out))
	}

	out, err = store.Query(ctx, Query{PlanID: "p2"})
	if err != nil {
		t.Fatalf("query plan id: %v", err)
	}
	if len(out) != 1 || out[0].Err != "no feasible route" {
		t.Fatalf("plan id filter: got %+v", out)
	}

	out, err = store.Query(ctx, Query{OnlyFeasible: true})
	if err != nil {
		t.Fatalf("query feasible: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("feasible filter: expected 2 records, got %d", len(out))
	}

	out, err = store.Query(ctx, Query{OnlyFailed: true})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(out) != 1 || out[0].PlanID != "p2" {
		t.Fatalf("failed filter: got %+v", out)
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	store, err := NewRotatingJSONLStore(filepath.Join(dir, "plans.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	rec := sampleRecord(time.Now(), "p1", 1)
	rec.Err = strings.Repeat("x", 16*1024)
	for i := 0; i < 100; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Lumberjack renames backups to plans-<timestamp>.jsonl.
	files, _ := filepath.Glob(filepath.Join(dir, "plans*.jsonl"))
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
	// Queries cover the rotated history, not just the live file.
	got, err := store.Query(context.Background(), Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 records across rotated files, got %d", len(got))
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}

func TestRecorderAppendsPlanEvents(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "plans.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()

	bus := eventbus.New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRecorder(ctx, bus, store, nil)

	bus.Publish(events.PlanCompleted{
		PlanID:     "p1",
		Candidates: 3,
		Feasible:   2,
		Stops:      1,
		Duration:   time.Millisecond,
		Time:       time.Now(),
	})
	bus.Publish(events.SessionTransitioned{SessionID: "s1"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		out, err := store.Query(ctx, Query{})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(out) == 1 && out[0].PlanID == "p1" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("plan event never recorded")
}
