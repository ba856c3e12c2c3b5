package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/schedule"
)

func tempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestWritesNeedARun(t *testing.T) {
	j := tempJournal(t)
	if err := j.EndRun(0, "", schedule.RunStats{}); !errors.Is(err, ErrNoRun) {
		t.Errorf("EndRun = %v, want ErrNoRun", err)
	}
	if err := j.RecordCalibration(schedule.Calibration{}); !errors.Is(err, ErrNoRun) {
		t.Errorf("RecordCalibration = %v, want ErrNoRun", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	j := tempJournal(t)

	id, err := j.BeginRun(RunInfo{
		Host:     "tower",
		Version:  "1.2.3",
		Interval: 3 * time.Second,
		Warmup:   60,
		Startup:  17 * time.Second,
		Tier:     2,
	})
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if id == "" || j.RunID() != id {
		t.Fatalf("RunID = %q, want %q", j.RunID(), id)
	}

	j.Calibrated(schedule.Calibration{
		Samples:  60,
		Generate: schedule.StageStats{Mean: 40 * time.Millisecond, SD: time.Millisecond},
		Baseline: schedule.Budget{Generate: 84 * time.Millisecond, Present: 20 * time.Millisecond},
	})
	j.Escalated(schedule.DropStats{Dropped: 10, Escalations: 1}, schedule.Budget{Generate: time.Second})
	j.Escalated(schedule.DropStats{Dropped: 20, Escalations: 2}, schedule.Budget{Generate: time.Second})

	if err := j.EndRun(4, "maximum dropped cycles exceeded", schedule.RunStats{Samples: 500, Drops: 41}); err != nil {
		t.Fatalf("EndRun: %v", err)
	}

	runs, err := j.Runs(10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Host != "tower" || r.Tier != 2 {
		t.Errorf("run = %+v", r)
	}
	if r.Interval != 3*time.Second || r.Startup != 17*time.Second {
		t.Errorf("interval/startup = %v/%v", r.Interval, r.Startup)
	}
	if !r.Finished || r.ExitCode != 4 || r.Drops != 41 || r.Samples != 500 {
		t.Errorf("exit = %+v", r)
	}
	if r.Calibrations != 1 || r.Escalations != 2 {
		t.Errorf("calibrations/escalations = %d/%d, want 1/2", r.Calibrations, r.Escalations)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	j := tempJournal(t)
	first, _ := j.BeginRun(RunInfo{Host: "a"})
	second, _ := j.BeginRun(RunInfo{Host: "b"})

	runs, err := j.Runs(1)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second {
		t.Fatalf("Runs(1) = %+v, want only %s", runs, second)
	}
	if runs[0].Finished {
		t.Error("an unfinished run should not report an exit")
	}

	all, _ := j.Runs(10)
	if len(all) != 2 || all[1].ID != first {
		t.Errorf("Runs(10) order = %+v", all)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.BeginRun(RunInfo{Host: "tower"}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	runs, err := j.Runs(10)
	if err != nil || len(runs) != 1 {
		t.Errorf("Runs after reopen = %v, %v", runs, err)
	}
}
