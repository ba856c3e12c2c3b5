// Package schedule drives the sample/render/present cycle: it runs stage
// work on the pool with per-stage budgets, drops cycles that overrun,
// calibrates budgets from observed render times and widens them when drops
// accumulate.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// Collector produces the Sample for one cycle.
type Collector interface {
	Collect(ctx context.Context, seq uint64, budget time.Duration) (sample.Sample, error)
}

// GenerateFunc renders a frame from the last committed snapshot.
type GenerateFunc func(ctx context.Context, snap sample.Snapshot) (display.Frame, error)

// PresentFunc pushes a frame to the outputs.
type PresentFunc func(ctx context.Context, f display.Frame) error

// LoadFunc returns the current CPU load percentage. It must not block.
type LoadFunc func() float64

// ProcessStats is this process's own resource use.
type ProcessStats struct {
	CPUPercent float64
	RSS        uint64
}

// ProcessStatsFunc samples ProcessStats.
type ProcessStatsFunc func(ctx context.Context) (ProcessStats, error)

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	// Budget is the starting budget, usually InitialBudget or the one
	// chosen by LimitStartup.
	Budget Budget
	// Profiler calibrates budgets. Nil keeps Budget for the whole run,
	// apart from escalations.
	Profiler  *Profiler
	Escalator *Escalator
	// Load defaults to cpu.percent of the latest committed sample.
	Load         LoadFunc
	ProcessStats ProcessStatsFunc
	// Cores is the logical CPU count used to express process CPU as a
	// share of the host.
	Cores int
	// ReportEvery is the period of the statistics report. Zero disables it.
	ReportEvery time.Duration
	Observer    Observer
	Logger      *slog.Logger
}

// Status is a point-in-time view of the scheduler for displays.
type Status struct {
	Samples      uint64
	Dropped      uint64
	Escalations  int
	Elapsed      time.Duration
	LastGenerate time.Duration
	LastPresent  time.Duration
	Budget       Budget
	Baseline     Budget
	WarmupDone   int
	WarmupTotal  int
	Calibrated   bool
}

// Scheduler runs cycles until its context ends or a fatal condition is
// reached. Run must be called from a single goroutine; Status and Budget
// may be called from anywhere.
type Scheduler struct {
	store     *sample.Store
	pool      *pool.Pool
	collector Collector
	generate  GenerateFunc
	present   PresentFunc

	interval    time.Duration
	load        LoadFunc
	procStats   ProcessStatsFunc
	cores       int
	reportEvery time.Duration
	observer    Observer
	logger      *slog.Logger

	mu        sync.Mutex
	current   Budget
	baseline  Budget
	profiler  *Profiler
	escalator *Escalator
	samples   uint64
	lastGen   time.Duration
	lastPres  time.Duration
	started   time.Time
}

// New returns a scheduler over store that runs its stages on p.
func New(store *sample.Store, p *pool.Pool, c Collector, generate GenerateFunc, present PresentFunc, opts Options) *Scheduler {
	s := &Scheduler{
		store:       store,
		pool:        p,
		collector:   c,
		generate:    generate,
		present:     present,
		interval:    opts.Interval,
		load:        opts.Load,
		procStats:   opts.ProcessStats,
		cores:       opts.Cores,
		reportEvery: opts.ReportEvery,
		observer:    opts.Observer,
		logger:      opts.Logger,
		current:     opts.Budget,
		baseline:    opts.Budget,
		profiler:    opts.Profiler,
		escalator:   opts.Escalator,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.observer == nil {
		s.observer = Observers(nil)
	}
	if s.escalator == nil {
		s.escalator = NewEscalator(EscalatorConfig{Every: 10, Factor: 1.25, MaxEscalations: 4, Ceiling: 40})
	}
	if s.load == nil {
		s.load = func() float64 {
			return store.Latest().Get(sample.KeyCPUPercent).Or(0)
		}
	}
	if s.cores < 1 {
		s.cores = 1
	}
	return s
}

// Budget returns the budget the next cycle will use.
func (s *Scheduler) Budget() Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Status returns the scheduler counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Samples:      s.samples,
		Dropped:      s.escalator.Stats().Dropped,
		Escalations:  s.escalator.Stats().Escalations,
		LastGenerate: s.lastGen,
		LastPresent:  s.lastPres,
		Budget:       s.current,
		Baseline:     s.baseline,
	}
	if !s.started.IsZero() {
		st.Elapsed = time.Since(s.started)
	}
	if s.profiler != nil {
		st.WarmupDone, st.WarmupTotal = s.profiler.Progress()
		st.Calibrated = s.profiler.Calibrated()
	}
	return st
}

// Stats returns the run statistics reported on exit.
func (s *Scheduler) Stats() RunStats {
	st := s.Status()
	return RunStats{
		Samples:     st.Samples,
		Drops:       st.Dropped,
		Escalations: st.Escalations,
		Elapsed:     st.Elapsed,
	}
}

// Prime collects and commits one sample so the first cycle has data to
// render.
func (s *Scheduler) Prime(ctx context.Context) error {
	b := s.Budget()
	ticket := s.store.Reserve()
	f := submitTimed(s.pool, func() (sample.Sample, error) {
		return s.collector.Collect(ctx, ticket.Seq, b.Collect)
	})
	res, err := f.Wait(b.Collect)
	if err != nil {
		s.store.Abandon(ticket)
		return fmt.Errorf("schedule: prime: %w", err)
	}
	if err := s.store.Commit(ticket, res.val); err != nil {
		return fmt.Errorf("schedule: prime: %w", err)
	}
	s.logger.Debug("store primed", "seq", ticket.Seq, "duration", res.took)
	return nil
}

// Run executes cycles until ctx is cancelled, returning nil, or until the
// drop ceiling is exceeded, returning a *FatalError.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", s.interval, "budget", s.Budget().String())
	lastReport := time.Now()

	for {
		if ctx.Err() != nil {
			st := s.Stats()
			s.logger.Info("scheduler stopped",
				"samples", st.Samples, "drops", st.Drops, "elapsed", st.Elapsed.Round(time.Second))
			return nil
		}

		budget := s.Budget()
		out := s.cycle(ctx, budget)
		s.observer.CycleFinished(out, budget)

		switch out.Kind {
		case Committed:
			s.commit(ctx, out)

		case TimedOut:
			if err := s.drop(out); err != nil {
				return err
			}
			sleepCtx(ctx, s.interval)

		case Aborted:
			if ctx.Err() == nil {
				s.logger.Warn("cycle aborted", "seq", out.Seq, "stage", string(out.Stage), "error", out.Err)
			}
		}

		if s.reportEvery > 0 && time.Since(lastReport) >= s.reportEvery {
			s.Report(ctx)
			lastReport = time.Now()
		}
	}
}

// timed is a stage result with its execution time.
type timed[T any] struct {
	val  T
	took time.Duration
}

func submitTimed[T any](p *pool.Pool, fn func() (T, error)) *pool.Future[timed[T]] {
	return pool.Submit(p, func(context.Context) (timed[T], error) {
		start := time.Now()
		v, err := fn()
		return timed[T]{val: v, took: time.Since(start)}, err
	})
}

// cycle runs one collect/generate/present round. The generator renders the
// snapshot committed by the previous cycle while the collector measures
// the next one.
func (s *Scheduler) cycle(ctx context.Context, b Budget) Outcome {
	start := time.Now()
	ticket := s.store.Reserve()
	snap := s.store.Read()
	out := Outcome{Seq: ticket.Seq}
	failed := false
	fail := func(stage Stage, budget time.Duration, err error) {
		if failed {
			return
		}
		failed = true
		out.Stage = stage
		if isTimeout(err) {
			out.Kind = TimedOut
			out.Err = &StageTimeoutError{Stage: stage, Budget: budget}
			return
		}
		out.Kind = Aborted
		out.Err = err
	}

	collectF := submitTimed(s.pool, func() (sample.Sample, error) {
		return s.collector.Collect(ctx, ticket.Seq, b.Collect)
	})
	genF := submitTimed(s.pool, func() (display.Frame, error) {
		return s.generate(ctx, snap)
	})

	gen, err := genF.Wait(b.Generate)
	if err != nil {
		fail(StageGenerate, b.Generate, err)
	} else {
		out.Generate = gen.took
		presF := submitTimed(s.pool, func() (struct{}, error) {
			return struct{}{}, s.present(ctx, gen.val)
		})
		pres, err := presF.Wait(b.Present)
		if err != nil {
			fail(StagePresent, b.Present, err)
		} else {
			out.Present = pres.took
		}
	}

	col, err := collectF.Wait(b.Collect)
	if err != nil {
		fail(StageCollect, b.Collect, err)
	} else {
		out.Collect = col.took
	}

	if !failed {
		if err := s.store.Commit(ticket, col.val); err != nil {
			fail(StageCollect, b.Collect, err)
		}
	}
	if failed {
		s.store.Abandon(ticket)
	}
	out.Cycle = time.Since(start)
	return out
}

func isTimeout(err error) bool {
	return errors.Is(err, pool.ErrTimeout) ||
		errors.Is(err, pool.ErrSaturated) ||
		errors.Is(err, collectors.ErrProbeTimeout)
}

// commit updates counters and budgets after a committed cycle.
func (s *Scheduler) commit(ctx context.Context, out Outcome) {
	var (
		cal        Calibration
		calibrated bool
	)

	s.mu.Lock()
	s.samples++
	s.lastGen, s.lastPres = out.Generate, out.Present
	if s.profiler != nil {
		cal, calibrated = s.profiler.Observe(out.Generate, out.Present)
		if calibrated {
			// Escalations that happened during warm-up still apply.
			f := s.escalator.Accumulated()
			s.baseline.Generate = scale(cal.Baseline.Generate, f)
			s.baseline.Present = scale(cal.Baseline.Present, f)
		}
		if s.profiler.Calibrated() {
			s.current = s.profiler.Scale(s.baseline, s.load())
		}
	}
	s.mu.Unlock()

	if calibrated {
		s.logCalibration(ctx, cal)
		s.observer.Calibrated(cal)
	}
}

// drop records a timed-out cycle, widening budgets every few drops. It
// returns a *FatalError once the ceiling is passed.
func (s *Scheduler) drop(out Outcome) error {
	s.mu.Lock()
	d := s.escalator.Drop()
	if d.Escalate {
		f := s.escalator.Factor()
		s.current = s.current.Scale(f)
		s.baseline = s.baseline.Scale(f)
	}
	current := s.current
	s.mu.Unlock()

	if d.Notify {
		s.logger.Warn("cycle dropped",
			"seq", out.Seq, "stage", string(out.Stage), "dropped", d.Dropped, "error", out.Err)
	}
	if d.Escalate {
		s.logger.Warn("numerous timeouts, widening budgets",
			"dropped", d.Dropped, "escalations", d.Escalations, "budget", current.String())
		s.observer.Escalated(d.DropStats, current)
	}
	if d.Fatal {
		stats := s.Stats()
		s.logger.Error("maximum dropped cycles exceeded",
			"dropped", d.Dropped, "samples", stats.Samples, "elapsed", stats.Elapsed.Round(time.Second))
		return &FatalError{
			Err:   fmt.Errorf("%w: %d drops", ErrFatalDropCeiling, d.Dropped),
			Stats: stats,
		}
	}
	return nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
