// Package sysmetrics provides the host probes for pulse-screen: aggregate
// CPU load with frequency and temperature, per-core load, disk throughput
// and network throughput. Readings come from gopsutil.
package sysmetrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// CPUProbe measures aggregate CPU load over the interval, then reads the
// current frequency and the resolved temperature sensor.
type CPUProbe struct {
	// sensor is the resolved temperature sensor prefix; empty when the host
	// has none.
	sensor string

	// Overridable sources for testing.
	percentFunc func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	infoFunc    func(ctx context.Context) ([]cpu.InfoStat, error)
	tempsFunc   func(ctx context.Context) ([]sensors.TemperatureStat, error)
}

// NewCPUProbe creates a CPUProbe reading temperature from sensor. An empty
// sensor reports temperature as unavailable.
func NewCPUProbe(sensor string) *CPUProbe {
	return &CPUProbe{
		sensor:      sensor,
		percentFunc: cpu.PercentWithContext,
		infoFunc:    cpu.InfoWithContext,
		tempsFunc:   sensors.TemperaturesWithContext,
	}
}

// Name returns the probe's unique identifier.
func (p *CPUProbe) Name() string { return "cpu" }

// Description returns a human-readable description of what this probe measures.
func (p *CPUProbe) Description() string {
	return "Aggregate CPU load, frequency and temperature"
}

// Keys lists the metric keys this probe produces.
func (p *CPUProbe) Keys() []string {
	return []string{sample.KeyCPUPercent, sample.KeyCPUFreqGHz, sample.KeyCPUTemp}
}

// Collect blocks for interval while measuring CPU load.
func (p *CPUProbe) Collect(ctx context.Context, interval time.Duration) (collectors.Reading, error) {
	pcts, err := p.percentFunc(ctx, interval, false)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: cpu percent: %w", err)
	}
	if len(pcts) == 0 {
		return nil, fmt.Errorf("sysmetrics: cpu percent: no data")
	}

	reading := collectors.Reading{
		sample.KeyCPUPercent: sample.Num(pcts[0]),
		sample.KeyCPUFreqGHz: sample.Unavailable,
		sample.KeyCPUTemp:    sample.Unavailable,
	}

	if infos, err := p.infoFunc(ctx); err == nil && len(infos) > 0 && infos[0].Mhz > 0 {
		reading[sample.KeyCPUFreqGHz] = sample.Num(infos[0].Mhz / 1000)
	}

	if p.sensor != "" {
		temps, err := p.tempsFunc(ctx)
		if t, ok := findSensor(temps, p.sensor); ok {
			reading[sample.KeyCPUTemp] = sample.Num(t)
		} else if err != nil {
			return reading, fmt.Errorf("sysmetrics: read %s: %w", p.sensor, err)
		}
	}

	return reading, nil
}

// findSensor returns the first reading whose key is name or starts with
// name followed by an underscore (gopsutil joins chip and label that way).
func findSensor(temps []sensors.TemperatureStat, name string) (float64, bool) {
	for _, t := range temps {
		if t.SensorKey == name || strings.HasPrefix(t.SensorKey, name+"_") {
			return t.Temperature, true
		}
	}
	return 0, false
}

// CoresProbe measures per-core CPU load over the interval.
type CoresProbe struct {
	percentFunc func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	count       int
}

// NewCoresProbe creates a CoresProbe for count logical cores.
func NewCoresProbe(count int) *CoresProbe {
	return &CoresProbe{percentFunc: cpu.PercentWithContext, count: count}
}

// Name returns the probe's unique identifier.
func (p *CoresProbe) Name() string { return "cores" }

// Description returns a human-readable description of what this probe measures.
func (p *CoresProbe) Description() string { return "Per-core CPU load" }

// Keys lists the metric keys this probe produces.
func (p *CoresProbe) Keys() []string {
	keys := make([]string, p.count)
	for i := range keys {
		keys[i] = sample.CoreKey(i)
	}
	return keys
}

// Collect blocks for interval while measuring per-core load.
func (p *CoresProbe) Collect(ctx context.Context, interval time.Duration) (collectors.Reading, error) {
	pcts, err := p.percentFunc(ctx, interval, true)
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: per-core percent: %w", err)
	}
	reading := make(collectors.Reading, len(pcts))
	for i, v := range pcts {
		reading[sample.CoreKey(i)] = sample.Num(v)
	}
	return reading, nil
}

// Compile-time interface checks.
var (
	_ collectors.Probe = (*CPUProbe)(nil)
	_ collectors.Probe = (*CoresProbe)(nil)
)
