package collectors

import (
	"context"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// StubProbe is a Probe with scripted behaviour, for tests and for running
// the scheduler without touching the host (-demo).
type StubProbe struct {
	// ProbeName is returned by Name.
	ProbeName string
	// Values is returned by every Collect call.
	Values Reading
	// Delay is how long Collect blocks. Zero means the collect interval.
	Delay time.Duration
	// DelayFunc, when set, overrides Delay per call (1-based call number).
	DelayFunc func(call int64) time.Duration
	// Err is returned alongside Values.
	Err error

	calls atomic.Int64
}

// Name returns the probe name.
func (s *StubProbe) Name() string { return s.ProbeName }

// Description returns a fixed description.
func (s *StubProbe) Description() string { return "stub probe " + s.ProbeName }

// Keys returns the keys of Values.
func (s *StubProbe) Keys() []string {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	return keys
}

// Calls returns how many times Collect ran.
func (s *StubProbe) Calls() int64 { return s.calls.Load() }

// Collect sleeps for the scripted delay, then returns Values and Err.
func (s *StubProbe) Collect(ctx context.Context, interval time.Duration) (Reading, error) {
	n := s.calls.Add(1)
	delay := s.Delay
	if s.DelayFunc != nil {
		delay = s.DelayFunc(n)
	} else if delay == 0 {
		delay = interval
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	out := make(Reading, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}
	return out, s.Err
}

// MockHostProbes returns four stub probes shaped like the host probes,
// each blocking for delay.
func MockHostProbes(delay time.Duration) []*StubProbe {
	return []*StubProbe{
		{
			ProbeName: "cpu",
			Delay:     delay,
			Values: Reading{
				sample.KeyCPUPercent: sample.Num(12.5),
				sample.KeyCPUFreqGHz: sample.Num(3.4),
				sample.KeyCPUTemp:    sample.Num(48),
			},
		},
		{
			ProbeName: "cores",
			Delay:     delay,
			Values: Reading{
				sample.CoreKey(0): sample.Num(10),
				sample.CoreKey(1): sample.Num(15),
				sample.CoreKey(2): sample.Num(5),
				sample.CoreKey(3): sample.Num(20),
			},
		},
		{
			ProbeName: "disk",
			Delay:     delay,
			Values: Reading{
				sample.KeyDiskRead:  sample.Num(1 << 20),
				sample.KeyDiskWrite: sample.Num(512 << 10),
			},
		},
		{
			ProbeName: "network",
			Delay:     delay,
			Values: Reading{
				sample.KeyNetRecv: sample.Num(2 << 20),
				sample.KeyNetSent: sample.Num(64 << 10),
				sample.KeyNetUp:   sample.Bool(true),
			},
		},
	}
}
