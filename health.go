package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/internal/format"
	"gitlab.com/tinyland/lab/pulse-screen/schedule"
	"gitlab.com/tinyland/lab/pulse-screen/state"
)

// HealthStatus is the health report written to the state directory.
type HealthStatus struct {
	Status     string     `json:"status"`
	PID        int        `json:"pid"`
	RunID      string     `json:"run_id,omitempty"`
	LastCommit time.Time  `json:"last_commit"`
	Interval   string     `json:"interval"`
	Samples    uint64     `json:"samples"`
	Drops      uint64     `json:"drops"`
	Calibrated bool       `json:"calibrated"`
	Budget     budgetJSON `json:"budget"`
	Error      string     `json:"error,omitempty"`
}

type budgetJSON struct {
	Generate string `json:"generate"`
	Present  string `json:"present"`
	Collect  string `json:"collect"`
}

func toBudgetJSON(b schedule.Budget) budgetJSON {
	return budgetJSON{Generate: b.Generate.String(), Present: b.Present.String(), Collect: b.Collect.String()}
}

// Health report states.
const (
	healthRunning = "running"
	healthStopped = "stopped"
	healthFailed  = "failed"
)

// healthFile is the filename for the health report within the state directory.
const healthFile = "health.json"

// healthWriter refreshes the health report after each committed cycle. It
// implements schedule.Observer.
type healthWriter struct {
	dir      *state.Dir
	interval time.Duration
	runID    string
	status   func() schedule.Status
}

func (h *healthWriter) report(name string, st schedule.Status, lastCommit time.Time, err error) HealthStatus {
	hs := HealthStatus{
		Status:     name,
		PID:        os.Getpid(),
		RunID:      h.runID,
		LastCommit: lastCommit,
		Interval:   h.interval.String(),
		Samples:    st.Samples,
		Drops:      st.Dropped,
		Calibrated: st.Calibrated,
		Budget:     toBudgetJSON(st.Budget),
	}
	if err != nil {
		hs.Error = err.Error()
	}
	return hs
}

// CycleFinished writes a running report for committed cycles.
func (h *healthWriter) CycleFinished(o schedule.Outcome, _ schedule.Budget) {
	if o.Kind != schedule.Committed {
		return
	}
	_ = h.dir.WriteJSON(healthFile, h.report(healthRunning, h.status(), time.Now(), nil))
}

func (h *healthWriter) Calibrated(schedule.Calibration)               {}
func (h *healthWriter) Escalated(schedule.DropStats, schedule.Budget) {}

// finish writes the final report on exit.
func (h *healthWriter) finish(runErr error) error {
	name := healthStopped
	if runErr != nil {
		name = healthFailed
	}
	last := time.Time{}
	if prev, err := readHealthFile(h.dir); err == nil {
		last = prev.LastCommit
	}
	return h.dir.WriteJSON(healthFile, h.report(name, h.status(), last, runErr))
}

// readHealthFile reads the health report from the state directory.
func readHealthFile(dir *state.Dir) (*HealthStatus, error) {
	status, err := state.ReadJSON[HealthStatus](dir, healthFile)
	if err != nil {
		return nil, fmt.Errorf("read health file: %w", err)
	}
	if status == nil {
		return nil, fmt.Errorf("read health file: %w", os.ErrNotExist)
	}
	return status, nil
}

// staleAfter is how long a running instance may go without committing a
// sample before it is reported stale.
func staleAfter(interval time.Duration) time.Duration {
	d := 3 * interval
	if d < 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// checkHealth reads the health report and returns 0 when a running instance
// committed a sample recently, 1 otherwise.
func checkHealth(dir *state.Dir, jsonOutput bool) int {
	status, err := readHealthFile(dir)
	if err != nil {
		if jsonOutput {
			fmt.Println(`{"status":"missing","error":"no health file found"}`)
		} else {
			fmt.Fprintln(os.Stderr, "pulse-screen not running (no health file)")
		}
		return 1
	}

	interval, _ := time.ParseDuration(status.Interval)
	threshold := staleAfter(interval)
	age := time.Since(status.LastCommit)
	healthy := status.Status == healthRunning && age <= threshold

	if jsonOutput {
		output := map[string]any{
			"status":      status.Status,
			"pid":         status.PID,
			"last_commit": status.LastCommit.Format(time.RFC3339),
			"age":         format.Compact(age),
			"stale":       age > threshold,
			"samples":     status.Samples,
			"drops":       status.Drops,
			"budget":      status.Budget,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(data))
	} else {
		switch {
		case status.Status != healthRunning:
			fmt.Fprintf(os.Stderr, "pulse-screen %s", status.Status)
			if status.Error != "" {
				fmt.Fprintf(os.Stderr, ": %s", status.Error)
			}
			fmt.Fprintln(os.Stderr)
		case !healthy:
			fmt.Fprintf(os.Stderr, "pulse-screen stale (last sample %s, threshold %s)\n",
				format.Ago(status.LastCommit), format.Compact(threshold))
		default:
			fmt.Printf("pulse-screen healthy (PID %d, last sample %s)\n", status.PID, format.Ago(status.LastCommit))
			fmt.Printf("  samples: %d  drops: %d  calibrated: %v\n", status.Samples, status.Drops, status.Calibrated)
			fmt.Printf("  budget: generate %s, present %s, collect %s\n",
				status.Budget.Generate, status.Budget.Present, status.Budget.Collect)
		}
	}

	if healthy {
		return 0
	}
	return 1
}
