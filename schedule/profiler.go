package schedule

import (
	"math"
	"time"
)

// observation is one successful cycle's stage execution times.
type observation struct {
	generate time.Duration
	present  time.Duration
}

// Window is a fixed-capacity ring of stage observations.
type Window struct {
	buf  []observation
	next int
	n    int
}

// NewWindow returns an empty window holding at most capacity observations.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]observation, capacity)}
}

// Add records one observation, overwriting the oldest when full.
func (w *Window) Add(generate, present time.Duration) {
	w.buf[w.next] = observation{generate: generate, present: present}
	w.next = (w.next + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Len returns the number of observations held.
func (w *Window) Len() int { return w.n }

// Stats summarises the generate and present observations.
func (w *Window) Stats() (generate, present StageStats) {
	gen := make([]time.Duration, 0, w.n)
	pres := make([]time.Duration, 0, w.n)
	for i := 0; i < w.n; i++ {
		o := w.buf[i]
		gen = append(gen, o.generate)
		pres = append(pres, o.present)
	}
	return statsOf(gen), statsOf(pres)
}

// StageStats describes one stage over the warm-up window.
type StageStats struct {
	N    int
	Mean time.Duration
	// SD is the population standard deviation.
	SD  time.Duration
	Min time.Duration
	Max time.Duration
}

func statsOf(ds []time.Duration) StageStats {
	st := StageStats{N: len(ds)}
	if len(ds) == 0 {
		return st
	}
	st.Min, st.Max = ds[0], ds[0]
	var sum float64
	for _, d := range ds {
		sum += float64(d)
		if d < st.Min {
			st.Min = d
		}
		if d > st.Max {
			st.Max = d
		}
	}
	mean := sum / float64(len(ds))
	var sq float64
	for _, d := range ds {
		diff := float64(d) - mean
		sq += diff * diff
	}
	st.Mean = time.Duration(mean)
	st.SD = time.Duration(math.Sqrt(sq / float64(len(ds))))
	return st
}

// baselineFor derives a stage budget from its warm-up statistics: twice
// the mean plus a pad of SD/500 seconds, with SD in milliseconds.
func baselineFor(st StageStats) time.Duration {
	sdMillis := float64(st.SD) / float64(time.Millisecond)
	pad := time.Duration(sdMillis / 500 * float64(time.Second))
	return 2 * (st.Mean + pad)
}

// Calibration is the result of a completed warm-up.
type Calibration struct {
	Samples  int
	Generate StageStats
	Present  StageStats
	// Baseline holds the derived generate and present budgets. Collect is
	// left zero; the collect budget is not calibrated.
	Baseline Budget
	// FullRender is the mean generate plus mean present time.
	FullRender time.Duration
	// Reference is the render time FullRender is compared against.
	Reference time.Duration
}

// SpeedPercent returns how fast the full render is relative to the
// reference, where 100 means equally fast.
func (c Calibration) SpeedPercent() float64 {
	if c.FullRender <= 0 {
		return 0
	}
	return float64(c.Reference) / float64(c.FullRender) * 100
}

// Profiler observes the first cycles of a run and derives baseline
// budgets from them, then scales those baselines by CPU load.
type Profiler struct {
	warmup      int
	sensitivity float64
	reference   time.Duration

	cycles int
	window *Window
	result *Calibration
}

// NewProfiler returns a profiler calibrating after warmup successful
// cycles.
func NewProfiler(warmup int, sensitivity float64, reference time.Duration) *Profiler {
	if warmup < 1 {
		warmup = 1
	}
	if sensitivity <= 0 {
		sensitivity = 20
	}
	return &Profiler{
		warmup:      warmup,
		sensitivity: sensitivity,
		reference:   reference,
		window:      NewWindow(warmup),
	}
}

// Observe records one successful cycle. The first cycle is ignored as it
// includes one-off setup costs. When the warm-up completes the calibration
// is returned with ok set; later calls return ok false.
func (p *Profiler) Observe(generate, present time.Duration) (cal Calibration, ok bool) {
	index := p.cycles
	p.cycles++

	switch {
	case index == 0 || p.result != nil:
		return Calibration{}, false
	case index < p.warmup:
		p.window.Add(generate, present)
		return Calibration{}, false
	}

	p.window.Add(generate, present)
	gen, pres := p.window.Stats()
	c := Calibration{
		Samples:  p.window.Len(),
		Generate: gen,
		Present:  pres,
		Baseline: Budget{
			Generate: baselineFor(gen),
			Present:  baselineFor(pres),
		},
		FullRender: gen.Mean + pres.Mean,
		Reference:  p.reference,
	}
	p.result = &c
	p.window = nil
	return c, true
}

// Calibrated reports whether the warm-up has completed.
func (p *Profiler) Calibrated() bool { return p.result != nil }

// Result returns the calibration, if any.
func (p *Profiler) Result() (Calibration, bool) {
	if p.result == nil {
		return Calibration{}, false
	}
	return *p.result, true
}

// Progress returns how many warm-up cycles have been observed out of the
// total needed.
func (p *Profiler) Progress() (done, total int) {
	done = p.cycles
	if done > p.warmup {
		done = p.warmup
	}
	return done, p.warmup
}

// Warmup returns the number of cycles observed before calibrating.
func (p *Profiler) Warmup() int { return p.warmup }

// Scale returns the generate and present budgets for a host at load
// percent: baseline grown by load/sensitivity of itself. Collect is copied
// from baseline unchanged.
func (p *Profiler) Scale(baseline Budget, load float64) Budget {
	if load < 0 || math.IsNaN(load) {
		load = 0
	}
	f := 1 + load/p.sensitivity
	return Budget{
		Generate: scale(baseline.Generate, f),
		Present:  scale(baseline.Present, f),
		Collect:  baseline.Collect,
	}
}
