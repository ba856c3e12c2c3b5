// Package collectors provides the probe interface and the fan-out collector
// that turns one round of probe readings into a Sample.
package collectors

import (
	"context"
	"errors"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// ErrMetricUnavailable is returned by probes when the host lacks the
// capability being measured. The collector records the probe's keys as
// unavailable instead of failing the cycle.
var ErrMetricUnavailable = errors.New("collectors: metric unavailable")

// Reading maps metric keys to the values one probe measured.
type Reading map[string]sample.Value

// Probe measures one group of host metrics.
type Probe interface {
	// Name returns the probe's unique identifier (e.g. "cpu", "network").
	// Names must be unique within a Registry.
	Name() string

	// Description returns a human-readable description of what this probe measures.
	Description() string

	// Keys lists the metric keys the probe produces. They are filled with
	// sample.Unavailable when the probe fails.
	Keys() []string

	// Collect blocks for about interval while measuring and returns the
	// readings. Rates are counter deltas divided by the elapsed time.
	// The context is cancelled on shutdown.
	Collect(ctx context.Context, interval time.Duration) (Reading, error)
}

// Registry holds registered probes in registration order.
type Registry struct {
	probes []Probe
}

// NewRegistry creates a new empty probe registry.
func NewRegistry() *Registry {
	return &Registry{
		probes: make([]Probe, 0),
	}
}

// Register adds a probe to the registry.
// If a probe with the same name already exists, it is replaced.
func (r *Registry) Register(p Probe) {
	for i, existing := range r.probes {
		if existing.Name() == p.Name() {
			r.probes[i] = p
			return
		}
	}
	r.probes = append(r.probes, p)
}

// Get returns a probe by name. The second return value indicates
// whether the probe was found.
func (r *Registry) Get(name string) (Probe, bool) {
	for _, p := range r.probes {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// All returns all registered probes.
func (r *Registry) All() []Probe {
	result := make([]Probe, len(r.probes))
	copy(result, r.probes)
	return result
}

// Names returns the names of all registered probes.
func (r *Registry) Names() []string {
	names := make([]string, len(r.probes))
	for i, p := range r.probes {
		names[i] = p.Name()
	}
	return names
}
