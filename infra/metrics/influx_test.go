package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/voltroute/planner/core/metrics"
)

// fakeInflux accepts health checks and captures line protocol writes.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"pass"}`))
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lines = append(f.lines, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeInflux) captured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func TestInfluxSinkWritesPoints(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "token", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); ok {
		t.Fatal("healthy instance must not fall back to NopSink")
	}

	err := sink.RecordPlanResult(coremetrics.PlanResult{
		Candidates: 3, Feasible: 2, Stops: 1,
		Duration: 120 * time.Millisecond, Time: time.Now(),
	})
	if err != nil {
		t.Fatalf("record plan: %v", err)
	}

	lines := fake.captured()
	if len(lines) != 1 || !strings.Contains(lines[0], "plan_result") {
		t.Fatalf("expected one plan_result write, got %v", lines)
	}
}

func TestInfluxSinkFallsBackWhenUnreachable(t *testing.T) {
	sink := NewInfluxSinkWithFallback("http://127.0.0.1:1", "token", "org", "bucket")
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink for unreachable instance, got %T", sink)
	}
}
