package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/schedule"
)

var testBudget = schedule.Budget{
	Generate: 200 * time.Millisecond,
	Present:  100 * time.Millisecond,
	Collect:  3 * time.Second,
}

func TestCycleFinished(t *testing.T) {
	e := NewExporter()

	e.CycleFinished(schedule.Outcome{Kind: schedule.Committed, Generate: 20 * time.Millisecond, Present: 5 * time.Millisecond, Collect: time.Second}, testBudget)
	e.CycleFinished(schedule.Outcome{Kind: schedule.TimedOut, Stage: schedule.StageGenerate}, testBudget)
	e.CycleFinished(schedule.Outcome{Kind: schedule.TimedOut, Stage: schedule.StageCollect}, testBudget)
	e.CycleFinished(schedule.Outcome{Kind: schedule.Aborted, Stage: schedule.StageGenerate, Err: errors.New("boom")}, testBudget)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"committed", testutil.ToFloat64(e.cycles.WithLabelValues("committed")), 1},
		{"timed out", testutil.ToFloat64(e.cycles.WithLabelValues("timed_out")), 2},
		{"aborted", testutil.ToFloat64(e.cycles.WithLabelValues("aborted")), 1},
		{"generate drops", testutil.ToFloat64(e.drops.WithLabelValues("generate")), 1},
		{"collect drops", testutil.ToFloat64(e.drops.WithLabelValues("collect")), 1},
		{"generate budget", testutil.ToFloat64(e.budget.WithLabelValues("generate")), 0.2},
		{"collect budget", testutil.ToFloat64(e.budget.WithLabelValues("collect")), 3},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if got := testutil.CollectAndCount(e.stage); got != 3 {
		t.Errorf("stage histograms = %d, want 3", got)
	}
	if testutil.ToFloat64(e.lastCommit) == 0 {
		t.Error("last commit timestamp not set")
	}
}

func TestCalibratedAndEscalated(t *testing.T) {
	e := NewExporter()
	e.Calibrated(schedule.Calibration{Baseline: schedule.Budget{Generate: 100 * time.Millisecond, Present: 50 * time.Millisecond}})
	e.Escalated(schedule.DropStats{Dropped: 10, Escalations: 1}, testBudget.Scale(1.25))

	if got := testutil.ToFloat64(e.calibrated); got != 1 {
		t.Errorf("calibrated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.baseline.WithLabelValues("present")); got != 0.05 {
		t.Errorf("present baseline = %v, want 0.05", got)
	}
	if got := testutil.ToFloat64(e.escalations); got != 1 {
		t.Errorf("escalations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.budget.WithLabelValues("collect")); got != 3.75 {
		t.Errorf("collect budget = %v, want 3.75", got)
	}
}

func TestHandlerExposesPool(t *testing.T) {
	e := NewExporter()
	p := pool.New(7)
	defer p.Close()
	e.WatchPool(p)
	e.CycleFinished(schedule.Outcome{Kind: schedule.Committed}, testBudget)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"pulse_screen_pool_workers 7",
		`pulse_screen_cycles_total{outcome="committed"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	e := NewExporter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.serve(ctx, ln, nil) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "pulse_screen_calibrated 0") {
		t.Errorf("unexpected body:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
