package schedule

import (
	"fmt"
	"time"
)

// OutcomeKind classifies how a cycle ended.
type OutcomeKind int

const (
	// Committed cycles published a new Sample.
	Committed OutcomeKind = iota
	// TimedOut cycles had a stage exceed its budget and were dropped.
	TimedOut
	// Aborted cycles failed for another reason and were discarded
	// without counting as a drop.
	Aborted
)

func (k OutcomeKind) String() string {
	switch k {
	case Committed:
		return "committed"
	case TimedOut:
		return "timed_out"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Outcome is the result of one cycle.
type Outcome struct {
	Kind OutcomeKind
	// Seq is the sequence number the cycle collected for.
	Seq uint64
	// Stage is the first stage that failed, for TimedOut and Aborted.
	Stage Stage
	// Err describes the failure.
	Err error

	// Stage execution times. Zero when the stage did not finish.
	Generate time.Duration
	Present  time.Duration
	Collect  time.Duration
	// Cycle is the wall time of the whole cycle, excluding any penalty
	// sleep.
	Cycle time.Duration
}

func (o Outcome) String() string {
	switch o.Kind {
	case Committed:
		return fmt.Sprintf("committed(%d)", o.Seq)
	case TimedOut:
		return fmt.Sprintf("timed_out(%s)", o.Stage)
	default:
		return fmt.Sprintf("aborted(%s: %v)", o.Stage, o.Err)
	}
}
