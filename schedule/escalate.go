package schedule

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// DropStats counts dropped cycles and the escalations they caused.
type DropStats struct {
	Dropped     uint64
	Escalations int
}

// Decision tells the scheduler what a drop leads to.
type Decision struct {
	DropStats
	// Escalate is set when budgets must be multiplied by the escalation
	// factor now.
	Escalate bool
	// Fatal is set once Dropped exceeds the ceiling.
	Fatal bool
	// Notify is set when this drop should be logged. Drop notices are
	// rate limited.
	Notify bool
}

// EscalatorConfig configures an Escalator.
type EscalatorConfig struct {
	Every          int
	Factor         float64
	MaxEscalations int
	Ceiling        uint64
}

// Escalator counts stage timeouts and decides when budgets widen and when
// the run must stop.
type Escalator struct {
	cfg     EscalatorConfig
	stats   DropStats
	notices *rate.Limiter
}

// NewEscalator returns an escalator with no drops recorded.
func NewEscalator(cfg EscalatorConfig) *Escalator {
	if cfg.Every < 1 {
		cfg.Every = 10
	}
	if cfg.Factor < 1 {
		cfg.Factor = 1.25
	}
	return &Escalator{
		cfg: cfg,
		// A burst of drops logs a few lines, then one per minute.
		notices: rate.NewLimiter(rate.Every(time.Minute), 3),
	}
}

// Drop records one timed-out cycle.
func (e *Escalator) Drop() Decision {
	e.stats.Dropped++
	d := Decision{Notify: e.notices.Allow()}

	if e.stats.Dropped%uint64(e.cfg.Every) == 0 && e.stats.Escalations < e.cfg.MaxEscalations {
		e.stats.Escalations++
		d.Escalate = true
		d.Notify = true
	}
	if e.stats.Dropped > e.cfg.Ceiling {
		d.Fatal = true
		d.Notify = true
	}
	d.DropStats = e.stats
	return d
}

// Stats returns the drop counters.
func (e *Escalator) Stats() DropStats { return e.stats }

// Factor returns the step multiplier applied at each escalation.
func (e *Escalator) Factor() float64 { return e.cfg.Factor }

// Accumulated returns the product of all escalations so far.
func (e *Escalator) Accumulated() float64 {
	return math.Pow(e.cfg.Factor, float64(e.stats.Escalations))
}
