package collectors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// ErrProbeTimeout is returned by Collector.Collect when a probe is still
// running at the deadline. Nothing from that round may be committed.
var ErrProbeTimeout = errors.New("collectors: probe exceeded collect budget")

// errTracker deduplicates repeated identical errors per probe.
type errTracker struct {
	lastMsg    string
	lastTime   time.Time
	suppressed int64
}

// Collector runs every registered probe in parallel on the worker pool and
// assembles their readings into one Sample.
type Collector struct {
	registry *Registry
	pool     *pool.Pool
	logger   *slog.Logger

	mu          sync.Mutex
	interval    time.Duration
	errTrackers map[string]*errTracker
}

// NewCollector creates a Collector. If logger is nil, a no-op logger is used.
func NewCollector(registry *Registry, p *pool.Pool, interval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{
		registry:    registry,
		pool:        p,
		logger:      logger,
		interval:    interval,
		errTrackers: make(map[string]*errTracker),
	}
}

// SetInterval changes the measuring interval for later rounds.
func (c *Collector) SetInterval(d time.Duration) {
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// Interval returns the measuring interval.
func (c *Collector) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Collect measures one round and returns a Sample with sequence number seq.
// All probes must return within budget of the call; otherwise
// ErrProbeTimeout is returned and completed readings are discarded. Probe
// failures other than lateness become unavailable values.
func (c *Collector) Collect(ctx context.Context, seq uint64, budget time.Duration) (sample.Sample, error) {
	interval := c.Interval()
	deadline := time.Now().Add(budget)

	probes := c.registry.All()
	futures := make([]*pool.Future[Reading], len(probes))
	for i, p := range probes {
		p := p
		futures[i] = pool.Submit(c.pool, func(context.Context) (Reading, error) {
			return p.Collect(ctx, interval)
		})
	}

	values := make(map[string]sample.Value)
	for i, f := range futures {
		p := probes[i]
		reading, err := f.Wait(time.Until(deadline))
		switch {
		case errors.Is(err, pool.ErrTimeout), errors.Is(err, pool.ErrSaturated):
			return sample.Sample{}, fmt.Errorf("%w: %s: %v", ErrProbeTimeout, p.Name(), err)
		case err != nil:
			if !errors.Is(err, ErrMetricUnavailable) && ctx.Err() == nil {
				c.logError(p.Name(), err)
			}
			for _, k := range p.Keys() {
				values[k] = sample.Unavailable
			}
			for k, v := range reading {
				values[k] = v
			}
		default:
			for k, v := range reading {
				values[k] = v
			}
		}
	}

	select {
	case <-ctx.Done():
		return sample.Sample{}, ctx.Err()
	default:
	}

	return sample.New(seq, time.Now(), values), nil
}

// logError logs a probe error, suppressing identical repeats within an hour.
func (c *Collector) logError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := err.Error()
	tracker := c.errTrackers[name]
	if tracker == nil {
		tracker = &errTracker{}
		c.errTrackers[name] = tracker
	}
	now := time.Now()
	if msg == tracker.lastMsg && now.Sub(tracker.lastTime) < time.Hour {
		tracker.suppressed++
		if tracker.suppressed%100 == 0 {
			c.logger.Warn("probe error repeated", "probe", name, "count", tracker.suppressed, "error", err)
		}
		return
	}
	if tracker.suppressed > 0 {
		c.logger.Warn("previous probe error repeated", "probe", name, "count", tracker.suppressed)
	}
	c.logger.Warn("probe failed, readings unavailable", "probe", name, "error", err)
	tracker.lastMsg = msg
	tracker.lastTime = now
	tracker.suppressed = 0
}
