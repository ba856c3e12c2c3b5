// Package metrics exports scheduler activity in the Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/schedule"
)

const namespace = "pulse_screen"

// Exporter records scheduler events into its own registry. It implements
// schedule.Observer.
type Exporter struct {
	registry *prometheus.Registry

	cycles      *prometheus.CounterVec
	drops       *prometheus.CounterVec
	stage       *prometheus.HistogramVec
	cycleTime   prometheus.Histogram
	budget      *prometheus.GaugeVec
	baseline    *prometheus.GaugeVec
	escalations prometheus.Counter
	calibrated  prometheus.Gauge
	lastCommit  prometheus.Gauge
}

// NewExporter returns an exporter with Go runtime and process collectors
// registered alongside the scheduler metrics.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Cycles run, by outcome",
		}, []string{"outcome"}),
		drops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Dropped cycles, by the stage that timed out",
		}, []string{"stage"}),
		stage: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Execution time of completed stages",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		cycleTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a cycle, excluding penalty sleeps",
			Buckets:   []float64{.1, .25, .5, 1, 2, 3, 5, 10, 30},
		}),
		budget: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_seconds",
			Help:      "Budget the last cycle ran with, by stage",
		}, []string{"stage"}),
		baseline: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_seconds",
			Help:      "Calibrated baseline budget, by stage",
		}, []string{"stage"}),
		escalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Times budgets were widened after repeated drops",
		}),
		calibrated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calibrated",
			Help:      "1 once the warm-up calibration has completed",
		}),
		lastCommit: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_commit_timestamp_seconds",
			Help:      "Unix time of the last committed sample",
		}),
	}
}

// Registry returns the registry the exporter writes to.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// WatchPool exports the worker pool occupancy.
func (e *Exporter) WatchPool(p *pool.Pool) {
	factory := promauto.With(e.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "busy_workers",
		Help:      "Workers currently running a task",
	}, func() float64 { return float64(p.Busy()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "queued_tasks",
		Help:      "Tasks waiting for a worker",
	}, func() float64 { return float64(p.Queued()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "workers",
		Help:      "Size of the worker pool",
	}, func() float64 { return float64(p.Size()) })
}

// CycleFinished implements schedule.Observer.
func (e *Exporter) CycleFinished(o schedule.Outcome, b schedule.Budget) {
	e.cycles.WithLabelValues(o.Kind.String()).Inc()
	e.cycleTime.Observe(o.Cycle.Seconds())
	e.setBudget(b)

	for stage, d := range map[schedule.Stage]time.Duration{
		schedule.StageGenerate: o.Generate,
		schedule.StagePresent:  o.Present,
		schedule.StageCollect:  o.Collect,
	} {
		if d > 0 {
			e.stage.WithLabelValues(string(stage)).Observe(d.Seconds())
		}
	}

	switch o.Kind {
	case schedule.Committed:
		e.lastCommit.SetToCurrentTime()
	case schedule.TimedOut:
		e.drops.WithLabelValues(string(o.Stage)).Inc()
	}
}

// Calibrated implements schedule.Observer.
func (e *Exporter) Calibrated(c schedule.Calibration) {
	e.calibrated.Set(1)
	e.baseline.WithLabelValues(string(schedule.StageGenerate)).Set(c.Baseline.Generate.Seconds())
	e.baseline.WithLabelValues(string(schedule.StagePresent)).Set(c.Baseline.Present.Seconds())
}

// Escalated implements schedule.Observer.
func (e *Exporter) Escalated(_ schedule.DropStats, b schedule.Budget) {
	e.escalations.Inc()
	e.setBudget(b)
}

func (e *Exporter) setBudget(b schedule.Budget) {
	e.budget.WithLabelValues(string(schedule.StageGenerate)).Set(b.Generate.Seconds())
	e.budget.WithLabelValues(string(schedule.StagePresent)).Set(b.Present.Seconds())
	e.budget.WithLabelValues(string(schedule.StageCollect)).Set(b.Collect.Seconds())
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
	return e.serve(ctx, ln, logger)
}

func (e *Exporter) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	if logger != nil {
		logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
