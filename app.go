package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/collectors/retry"
	"gitlab.com/tinyland/lab/pulse-screen/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/pulse-screen/config"
	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/display/tui"
	"gitlab.com/tinyland/lab/pulse-screen/journal"
	"gitlab.com/tinyland/lab/pulse-screen/metrics"
	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
	"gitlab.com/tinyland/lab/pulse-screen/schedule"
	"gitlab.com/tinyland/lab/pulse-screen/sink"
	"gitlab.com/tinyland/lab/pulse-screen/state"
)

// Exit codes.
const (
	exitOK             = 0
	exitError          = 1
	exitStartupLatency = 3
	exitDropCeiling    = 4
)

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, schedule.ErrFatalStartupLatency):
		return exitStartupLatency
	case errors.Is(err, schedule.ErrFatalDropCeiling):
		return exitDropCeiling
	default:
		return exitError
	}
}

// runOptions are command-line choices that are not part of the config file.
type runOptions struct {
	// started is when the process began, for startup throttling.
	started time.Time
	// demo replaces the host probes with synthetic ones.
	demo bool
}

// app holds everything one run wires together.
type app struct {
	cfg    *config.Config
	opts   runOptions
	logger *slog.Logger

	dir         *state.Dir
	presenter   *sink.Presenter
	placeholder *image.NRGBA
	program     *tea.Program
	programDone chan struct{}

	host      *sysmetrics.Host
	hostname  string
	ip        string
	generator *display.Generator

	journal *journal.Journal
	health  *healthWriter
	sched   *schedule.Scheduler
}

// run executes one pulse-screen session until ctx ends, the TUI quits, or
// a fatal condition stops it.
func run(ctx context.Context, cfg *config.Config, opts runOptions, logger *slog.Logger) error {
	for _, w := range cfg.Normalize() {
		logger.Warn("config adjusted", "detail", w)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dir, err := state.Open(cfg.State.Dir, logger)
	if err != nil {
		return err
	}
	pid := &pidFile{dir: dir, logger: logger}
	if err := pid.acquire(); err != nil {
		return err
	}
	defer pid.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := &app{cfg: cfg, opts: opts, logger: logger, dir: dir}
	a.buildSinks(cancel)
	defer a.stopTUI()
	a.showPlaceholder()

	probes, cores := a.resolveHost(ctx)

	startup := time.Since(opts.started)
	configured := cfg.RefreshInterval()
	limits, limitErr := schedule.LimitStartup(startup, configured, cfg.Profiler.Warmup)
	if limitErr == nil && limits.Tier > 0 {
		logger.Warn("slow startup, throttling sampling",
			"startup", startup.Round(time.Millisecond), "tier", limits.Tier,
			"interval", limits.Interval, "raised", limits.Raised(configured), "warmup", limits.Warmup)
	}
	cfg.SetRefreshInterval(limits.Interval)
	interval := limits.Interval

	if err := a.openJournal(limits, startup); err != nil {
		logger.Warn("run journal disabled", "error", err)
	}
	defer a.closeJournal()

	if limitErr != nil {
		logger.Error("host is unsuitable for this program", "error", limitErr)
		a.finish(limitErr, schedule.RunStats{})
		return limitErr
	}

	histSize, _ := cfg.HistSize()
	store := sample.NewStore(histSize)
	a.generator = display.NewGenerator(display.Options{
		Width:        cfg.Display.Width,
		Height:       cfg.Display.Height,
		Rotation:     cfg.Display.Rotation,
		HistSize:     histSize,
		Debug:        cfg.Display.Debug,
		ProfileStage: cfg.Display.ProfileStage,
		BarColors:    cfg.Display.BarColors,
	})

	workers := pool.New(cfg.Sampling.Workers)
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), interval)
		defer cancelShutdown()
		if err := workers.Shutdown(shutdownCtx); err != nil {
			logger.Debug("pool did not drain", "error", err)
		}
	}()

	registry := collectors.NewRegistry()
	for _, p := range retry.Wrap(probes, retry.Config{Logger: logger}) {
		registry.Register(p)
	}
	collector := collectors.NewCollector(registry, workers, interval, logger)

	budget := schedule.InitialBudget(interval)
	if limits.BudgetSet {
		budget = limits.Budget
	}
	var profiler *schedule.Profiler
	if cfg.Profiler.Enabled {
		profiler = schedule.NewProfiler(limits.Warmup, cfg.Profiler.LoadSensitivity, cfg.ReferenceRenderTime())
	}

	a.health = &healthWriter{dir: dir, interval: interval}
	observers := schedule.Observers{a.health}
	if a.journal != nil {
		a.health.runID = a.journal.RunID()
		observers = append(observers, a.journal)
	}
	if cfg.Metrics.Enabled {
		exp := metrics.NewExporter()
		exp.WatchPool(workers)
		observers = append(observers, exp)
		go func() {
			if err := exp.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	a.sched = schedule.New(store, workers, collector, a.generate, a.presenter.Present, schedule.Options{
		Interval: interval,
		Budget:   budget,
		Profiler: profiler,
		Escalator: schedule.NewEscalator(schedule.EscalatorConfig{
			Every:          cfg.Escalation.Every,
			Factor:         cfg.Escalation.Factor,
			MaxEscalations: cfg.Escalation.MaxEscalations,
			Ceiling:        uint64(cfg.Escalation.DropCeiling),
		}),
		ProcessStats: a.processStats(ctx),
		Cores:        cores,
		ReportEvery:  cfg.ReportEvery(),
		Observer:     observers,
		Logger:       logger,
	})
	a.health.status = a.sched.Status

	logger.Info("starting pulse-screen",
		"version", version, "interval", interval, "history", histSize,
		"workers", cfg.Sampling.Workers, "sinks", len(a.presenter.Sinks()), "demo", opts.demo)

	if err := a.sched.Prime(ctx); err != nil {
		logger.Warn("initial collection failed", "error", err)
	}

	runErr := a.sched.Run(ctx)
	a.finish(runErr, a.sched.Stats())
	return runErr
}

// buildSinks creates the configured outputs. Quitting the TUI cancels the
// run through cancel.
func (a *app) buildSinks(cancel context.CancelFunc) {
	var sinks []sink.Sink
	out := a.cfg.Output
	if out.PNG.Enabled {
		sinks = append(sinks, sink.NewPNGSink(out.PNG.Path))
	}
	if out.Terminal.Enabled && !out.TUI {
		sinks = append(sinks, sink.NewTerminalSink(out.Terminal.Mode))
	}
	if out.TUI {
		a.program, a.programDone = startTUI(cancel, a.logger)
		sinks = append(sinks, sink.NewTUISink(a.program, a.tuiStatus))
	}
	a.presenter = sink.NewPresenter(a.logger, sinks...)
}

func (a *app) tuiStatus() tui.Status {
	if a.sched == nil {
		return tui.Status{}
	}
	st := a.sched.Status()
	return tui.Status{
		Samples:     st.Samples,
		Drops:       st.Dropped,
		WarmupDone:  st.WarmupDone,
		WarmupTotal: st.WarmupTotal,
	}
}

func (a *app) showPlaceholder() {
	d := a.cfg.Display
	img, err := display.Placeholder(d.Splash, d.Width, d.Height, d.Rotation)
	if err != nil {
		a.logger.Warn("splash image unavailable", "error", err)
	}
	a.placeholder = img
	if err := a.presenter.Placeholder(img); err != nil {
		a.logger.Warn("placeholder not shown", "error", err)
	}
}

// resolveHost picks the probes and reads host facts that do not change
// during a run.
func (a *app) resolveHost(ctx context.Context) ([]collectors.Probe, int) {
	a.hostname, _ = os.Hostname()

	if a.opts.demo {
		a.ip = "127.0.0.1"
		var probes []collectors.Probe
		for _, p := range collectors.MockHostProbes(0) {
			probes = append(probes, p)
		}
		return probes, 4
	}

	res := sysmetrics.Resolve(ctx, a.cfg.Host)
	for _, w := range res.Warnings {
		a.logger.Warn("host setting substituted", "detail", w)
	}
	a.logger.Info("host resolved",
		"sensor", res.TempSensor, "interface", res.Interface, "array", res.ArrayPath, "cores", res.Cores)
	a.host = sysmetrics.NewHost(res.ArrayPath)
	a.ip = sysmetrics.LocalIP()
	return sysmetrics.NewProbes(res), res.Cores
}

// generate renders snap with the current host side data.
func (a *app) generate(ctx context.Context, snap sample.Snapshot) (display.Frame, error) {
	return a.generator.Generate(snap, a.overlay(ctx))
}

func (a *app) overlay(ctx context.Context) display.Overlay {
	ov := display.Overlay{Hostname: a.hostname, IP: a.ip}
	if a.host != nil {
		hs, err := a.host.Status(ctx)
		if err != nil {
			a.logger.Debug("host status incomplete", "error", err)
		}
		ov.Uptime = hs.Uptime
		ov.Memory = display.Usage{Used: hs.MemUsed, Total: hs.MemTotal, Percent: hs.MemPercent}
		ov.Array = display.Usage{Used: hs.ArrayUsed, Total: hs.ArrayTotal, Percent: hs.ArrayPercent}
	}
	if a.sched != nil {
		st := a.sched.Status()
		ov.Samples = st.Samples
		ov.Drops = st.Dropped
		ov.Elapsed = st.Elapsed
		ov.LastGenerate = st.LastGenerate
		ov.LastPresent = st.LastPresent
	}
	return ov
}

// processStats returns the scheduler's view of this process, or nil when
// the process cannot be inspected.
func (a *app) processStats(ctx context.Context) schedule.ProcessStatsFunc {
	self, err := sysmetrics.NewSelf(ctx)
	if err != nil {
		a.logger.Warn("process statistics unavailable", "error", err)
		return nil
	}
	return func(ctx context.Context) (schedule.ProcessStats, error) {
		st, err := self.Stats(ctx)
		return schedule.ProcessStats{CPUPercent: st.CPUPercent, RSS: st.RSS}, err
	}
}

func (a *app) openJournal(limits schedule.Limits, startup time.Duration) error {
	if !a.cfg.Journal.Enabled {
		return nil
	}
	j, err := journal.Open(a.cfg.Journal.Path, a.logger)
	if err != nil {
		return err
	}
	if _, err := j.BeginRun(journal.RunInfo{
		Host:     a.hostname,
		Version:  version,
		Interval: limits.Interval,
		Warmup:   limits.Warmup,
		Startup:  startup,
		Tier:     limits.Tier,
	}); err != nil {
		j.Close()
		return err
	}
	a.journal = j
	return nil
}

func (a *app) closeJournal() {
	if a.journal != nil {
		a.journal.Close()
	}
}

// finish leaves the placeholder on the outputs and records how the run
// ended.
func (a *app) finish(runErr error, stats schedule.RunStats) {
	if a.placeholder != nil {
		if err := a.presenter.Placeholder(a.placeholder); err != nil {
			a.logger.Warn("placeholder not shown", "error", err)
		}
	}

	reason := "stopped"
	if runErr != nil {
		reason = runErr.Error()
	}
	a.logger.Info("pulse-screen stopped",
		"samples", stats.Samples, "drops", stats.Drops,
		"elapsed", display.FormatDuration(stats.Elapsed), "reason", reason)

	if a.journal != nil {
		if err := a.journal.EndRun(exitCode(runErr), reason, stats); err != nil {
			a.logger.Warn("journal write failed", "error", err)
		}
	}
	if a.health != nil && a.health.status != nil {
		if err := a.health.finish(runErr); err != nil {
			a.logger.Warn("health report not written", "error", err)
		}
	}
}

func (a *app) stopTUI() {
	if a.program == nil {
		return
	}
	a.program.Quit()
	select {
	case <-a.programDone:
	case <-time.After(2 * time.Second):
	}
}
