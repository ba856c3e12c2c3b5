package schedule

import (
	"fmt"
	"time"
)

// startupTier throttles a host whose initialization took at least
// threshold.
type startupTier struct {
	threshold   time.Duration
	minInterval time.Duration
	budget      float64
	warmup      int
}

// fatalStartup is the initialization time beyond which no interval is
// considered sustainable.
const fatalStartup = 60 * time.Second

var startupTiers = []startupTier{
	{threshold: 24 * time.Second, minInterval: 10 * time.Second, budget: 2, warmup: 45},
	{threshold: 16 * time.Second, minInterval: 4 * time.Second, budget: 2, warmup: 60},
	{threshold: 10 * time.Second, minInterval: 2 * time.Second, budget: 1.5, warmup: 100},
}

// Limits is the outcome of LimitStartup.
type Limits struct {
	Interval time.Duration
	Warmup   int
	// Budget replaces the initial budgets when BudgetSet is true, which
	// only happens when Interval was raised.
	Budget    Budget
	BudgetSet bool
	// Tier is 0 when no throttling applies, 1 to 3 from mildest, and 4
	// when the host is unsuitable.
	Tier int
}

// Raised reports whether the interval was changed.
func (l Limits) Raised(original time.Duration) bool { return l.Interval != original }

// LimitStartup adjusts the sampling interval and warm-up count for a host
// whose initialization took startup. Hosts slower than a minute get
// ErrFatalStartupLatency.
func LimitStartup(startup, interval time.Duration, warmup int) (Limits, error) {
	l := Limits{Interval: interval, Warmup: warmup}
	if startup >= fatalStartup {
		l.Tier = len(startupTiers) + 1
		return l, fmt.Errorf("%w: initialization took %v", ErrFatalStartupLatency, startup.Round(time.Millisecond))
	}

	for i, t := range startupTiers {
		if startup < t.threshold {
			continue
		}
		l.Tier = len(startupTiers) - i
		if interval < t.minInterval {
			l.Interval = t.minInterval
			b := scale(t.minInterval, t.budget)
			l.Budget = Budget{Generate: b, Present: b, Collect: b}
			l.BudgetSet = true
		}
		if warmup > t.warmup {
			l.Warmup = t.warmup
		}
		break
	}
	return l, nil
}
