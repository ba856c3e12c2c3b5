package main

import (
	"errors"
	"os"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/schedule"
	"gitlab.com/tinyland/lab/pulse-screen/state"
)

func testHealthWriter(t *testing.T, st schedule.Status) *healthWriter {
	t.Helper()
	dir, err := state.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &healthWriter{
		dir:      dir,
		interval: 2 * time.Second,
		runID:    "run-1",
		status:   func() schedule.Status { return st },
	}
}

func TestHealthWriterCommitted(t *testing.T) {
	h := testHealthWriter(t, schedule.Status{
		Samples: 12, Dropped: 1, Calibrated: true,
		Budget: schedule.Budget{Generate: time.Second, Present: 2 * time.Second, Collect: 3 * time.Second},
	})

	// Non-committed outcomes leave no report.
	h.CycleFinished(schedule.Outcome{Kind: schedule.TimedOut}, schedule.Budget{})
	if _, err := readHealthFile(h.dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("readHealthFile after timeout = %v, want not exist", err)
	}

	h.CycleFinished(schedule.Outcome{Kind: schedule.Committed}, schedule.Budget{})
	status, err := readHealthFile(h.dir)
	if err != nil {
		t.Fatalf("readHealthFile: %v", err)
	}
	if status.Status != healthRunning {
		t.Errorf("status = %q, want %q", status.Status, healthRunning)
	}
	if status.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.RunID != "run-1" || status.Interval != "2s" {
		t.Errorf("run_id, interval = %q, %q", status.RunID, status.Interval)
	}
	if status.Samples != 12 || status.Drops != 1 || !status.Calibrated {
		t.Errorf("counters = %+v", status)
	}
	if status.Budget.Present != "2s" {
		t.Errorf("budget.present = %q, want 2s", status.Budget.Present)
	}
	if time.Since(status.LastCommit) > time.Minute {
		t.Error("last_commit should be recent")
	}
}

func TestHealthWriterFinish(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		wantErr string
	}{
		{"clean", nil, healthStopped, ""},
		{"fatal", schedule.ErrFatalDropCeiling, healthFailed, schedule.ErrFatalDropCeiling.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHealthWriter(t, schedule.Status{Samples: 3})
			h.CycleFinished(schedule.Outcome{Kind: schedule.Committed}, schedule.Budget{})
			before, err := readHealthFile(h.dir)
			if err != nil {
				t.Fatal(err)
			}

			if err := h.finish(tt.err); err != nil {
				t.Fatalf("finish: %v", err)
			}
			status, err := readHealthFile(h.dir)
			if err != nil {
				t.Fatal(err)
			}
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if status.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", status.Error, tt.wantErr)
			}
			if !status.LastCommit.Equal(before.LastCommit) {
				t.Errorf("last_commit = %v, want it kept at %v", status.LastCommit, before.LastCommit)
			}
		})
	}
}

func TestStaleAfter(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{0, 10 * time.Second},
		{time.Second, 10 * time.Second},
		{3 * time.Second, 10 * time.Second},
		{10 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := staleAfter(tt.interval); got != tt.want {
			t.Errorf("staleAfter(%v) = %v, want %v", tt.interval, got, tt.want)
		}
	}
}

func TestCheckHealth(t *testing.T) {
	write := func(t *testing.T, hs HealthStatus) *state.Dir {
		t.Helper()
		dir, err := state.Open(t.TempDir(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := dir.WriteJSON(healthFile, hs); err != nil {
			t.Fatal(err)
		}
		return dir
	}

	t.Run("missing", func(t *testing.T) {
		dir, err := state.Open(t.TempDir(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if code := checkHealth(dir, true); code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	})

	tests := []struct {
		name string
		hs   HealthStatus
		want int
	}{
		{"fresh", HealthStatus{Status: healthRunning, LastCommit: time.Now(), Interval: "3s"}, 0},
		{"stale", HealthStatus{Status: healthRunning, LastCommit: time.Now().Add(-time.Minute), Interval: "3s"}, 1},
		{"slow interval", HealthStatus{Status: healthRunning, LastCommit: time.Now().Add(-time.Minute), Interval: "30s"}, 0},
		{"stopped", HealthStatus{Status: healthStopped, LastCommit: time.Now(), Interval: "3s"}, 1},
		{"failed", HealthStatus{Status: healthFailed, LastCommit: time.Now(), Interval: "3s", Error: "boom"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := write(t, tt.hs)
			if code := checkHealth(dir, false); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}
