package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Stage names one step of a cycle.
type Stage string

const (
	StageCollect  Stage = "collect"
	StageGenerate Stage = "generate"
	StagePresent  Stage = "present"
)

// StageTimeoutError reports a stage that outlived its budget. The cycle is
// dropped; the process carries on.
type StageTimeoutError struct {
	Stage  Stage
	Budget time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("schedule: %s stage exceeded its %v budget", e.Stage, e.Budget)
}

var (
	// ErrFatalStartupLatency means initialization was so slow that the host
	// cannot keep up with any sampling interval.
	ErrFatalStartupLatency = errors.New("schedule: startup took too long, this host is unsuitable")

	// ErrFatalDropCeiling means more cycles were dropped than the
	// configured ceiling allows.
	ErrFatalDropCeiling = errors.New("schedule: maximum dropped cycles exceeded")
)

// RunStats summarises a run for exit logging.
type RunStats struct {
	Samples     uint64
	Drops       uint64
	Escalations int
	Elapsed     time.Duration
}

// FatalError wraps an unrecoverable condition with the statistics of the
// run it ended.
type FatalError struct {
	Err   error
	Stats RunStats
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v (after %d samples, %d drops, %v)",
		e.Err, e.Stats.Samples, e.Stats.Drops, e.Stats.Elapsed.Round(time.Second))
}

func (e *FatalError) Unwrap() error { return e.Err }
