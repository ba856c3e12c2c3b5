package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// fakeClock is advanced by hand.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(p collectors.Probe) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(p, Config{
		MaxFailures:       2,
		ResetTimeout:      time.Minute,
		MaxResetTimeout:   3 * time.Minute,
		BackoffMultiplier: 2,
	})
	cb.now = clock.now
	return cb, clock
}

func failing(name string) *collectors.StubProbe {
	return &collectors.StubProbe{
		ProbeName: name,
		Delay:     time.Millisecond,
		Values:    collectors.Reading{"x": sample.Num(1)},
		Err:       errors.New("sensor read failed"),
	}
}

func collect(t *testing.T, cb *CircuitBreaker) error {
	t.Helper()
	_, err := cb.Collect(context.Background(), time.Millisecond)
	return err
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
		{State(9), "unknown(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(failing("cpu"), Config{})
	def := DefaultConfig()
	if cb.config.MaxFailures != def.MaxFailures || cb.config.ResetTimeout != def.ResetTimeout {
		t.Errorf("config = %+v, want defaults %+v", cb.config, def)
	}
	if cb.config.MaxResetTimeout != def.MaxResetTimeout {
		t.Errorf("MaxResetTimeout = %v, want %v", cb.config.MaxResetTimeout, def.MaxResetTimeout)
	}
}

func TestBreakerDelegates(t *testing.T) {
	p := &collectors.StubProbe{ProbeName: "disk", Delay: time.Millisecond, Values: collectors.Reading{"disk.read": sample.Num(3)}}
	cb, _ := newTestBreaker(p)

	if cb.Name() != "disk" {
		t.Errorf("Name = %q, want disk", cb.Name())
	}
	if keys := cb.Keys(); len(keys) != 1 || keys[0] != "disk.read" {
		t.Errorf("Keys = %v, want [disk.read]", keys)
	}
	if !strings.Contains(cb.Description(), "[circuit: closed]") {
		t.Errorf("Description = %q", cb.Description())
	}

	reading, err := cb.Collect(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if v := reading["disk.read"]; v != sample.Num(3) {
		t.Errorf("reading = %v, want 3", v)
	}
	if st := cb.Stats(); st.TotalSuccesses != 1 {
		t.Errorf("TotalSuccesses = %d, want 1", st.TotalSuccesses)
	}
}

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	p := failing("cpu")
	cb, _ := newTestBreaker(p)

	for i := 0; i < 2; i++ {
		if err := collect(t, cb); err == nil || errors.Is(err, ErrOpen) {
			t.Fatalf("call %d: err = %v, want the probe error", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	err := collect(t, cb)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if !errors.Is(err, collectors.ErrMetricUnavailable) {
		t.Error("ErrOpen should wrap ErrMetricUnavailable")
	}
	if p.Calls() != 2 {
		t.Errorf("probe calls = %d, want 2 (skipped while open)", p.Calls())
	}
	if st := cb.Stats(); st.Skipped != 1 || st.TotalFailures != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	p := failing("cpu")
	cb, clock := newTestBreaker(p)
	collect(t, cb)
	collect(t, cb)

	clock.advance(time.Minute)
	p.Err = nil
	if err := collect(t, cb); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	if st := cb.Stats(); st.ConsecutiveFails != 0 || st.CurrentTimeout != time.Minute {
		t.Errorf("stats = %+v", st)
	}
}

func TestBreakerBackoff(t *testing.T) {
	p := failing("cpu")
	cb, clock := newTestBreaker(p)
	collect(t, cb)
	collect(t, cb)

	tests := []time.Duration{2 * time.Minute, 3 * time.Minute, 3 * time.Minute}
	wait := time.Minute
	for i, want := range tests {
		clock.advance(wait)
		if err := collect(t, cb); errors.Is(err, ErrOpen) {
			t.Fatalf("round %d: still open after %v", i, wait)
		}
		st := cb.Stats()
		if st.State != StateOpen || st.CurrentTimeout != want {
			t.Errorf("round %d: state %v timeout %v, want open %v", i, st.State, st.CurrentTimeout, want)
		}

		clock.advance(want - time.Second)
		if err := collect(t, cb); !errors.Is(err, ErrOpen) {
			t.Errorf("round %d: err = %v before the timeout, want ErrOpen", i, err)
		}
		wait = time.Second
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	p := &collectors.StubProbe{ProbeName: "net", Delay: time.Second}
	cb, _ := newTestBreaker(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		if _, err := cb.Collect(ctx, time.Second); err == nil {
			t.Fatal("expected a cancellation error")
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after cancelled calls", cb.State())
	}
}

func TestWrap(t *testing.T) {
	var probes []collectors.Probe
	for _, p := range collectors.MockHostProbes(time.Millisecond) {
		probes = append(probes, p)
	}
	wrapped := Wrap(probes, DefaultConfig())
	if len(wrapped) != len(probes) {
		t.Fatalf("len = %d, want %d", len(wrapped), len(probes))
	}
	for i, w := range wrapped {
		if _, ok := w.(*CircuitBreaker); !ok {
			t.Errorf("probe %d is %T, want *CircuitBreaker", i, w)
		}
		if w.Name() != probes[i].Name() {
			t.Errorf("probe %d name = %q, want %q", i, w.Name(), probes[i].Name())
		}
	}
}
