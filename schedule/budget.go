package schedule

import (
	"fmt"
	"time"
)

// Budget holds how long the scheduler waits for each stage in a cycle.
type Budget struct {
	Generate time.Duration
	Present  time.Duration
	Collect  time.Duration
}

// minRenderBudget is the floor for generate and present budgets when the
// sampling interval is shorter than a second.
const minRenderBudget = time.Second

// InitialBudget returns the budgets used before calibration: 1.25
// intervals per stage, with generate and present raised to a second for
// sub-second intervals.
func InitialBudget(interval time.Duration) Budget {
	b := Budget{
		Generate: scale(interval, 1.25),
		Present:  scale(interval, 1.25),
		Collect:  scale(interval, 1.25),
	}
	if interval < time.Second {
		b.Generate = minRenderBudget
		b.Present = minRenderBudget
	}
	return b
}

// Scale multiplies every stage budget by f.
func (b Budget) Scale(f float64) Budget {
	return Budget{
		Generate: scale(b.Generate, f),
		Present:  scale(b.Present, f),
		Collect:  scale(b.Collect, f),
	}
}

func (b Budget) String() string {
	return fmt.Sprintf("generate=%v present=%v collect=%v",
		b.Generate.Round(time.Millisecond), b.Present.Round(time.Millisecond), b.Collect.Round(time.Millisecond))
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
