package sysmetrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/config"
)

// sensorFallbacks are tried in order when the configured sensor is absent.
var sensorFallbacks = []string{"coretemp", "k10temp", "k8temp", "cpu_thermal", "cpu_thermal_zone"}

// Resolution is the host configuration after checking it against what the
// machine actually has.
type Resolution struct {
	// TempSensor is empty when no usable sensor was found.
	TempSensor string
	// Interface is empty when throughput is summed over all interfaces.
	Interface string
	ArrayPath string
	Cores     int

	// Warnings describe every substitution that was made.
	Warnings []string
}

// resolver holds the gopsutil entry points used during resolution so
// tests can replace them.
type resolver struct {
	tempsFunc    func(ctx context.Context) ([]sensors.TemperatureStat, error)
	countersFunc func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)
	usageFunc    func(ctx context.Context, path string) (*disk.UsageStat, error)
	countsFunc   func(ctx context.Context, logical bool) (int, error)
}

func defaultResolver() resolver {
	return resolver{
		tempsFunc:    sensors.TemperaturesWithContext,
		countersFunc: psnet.IOCountersWithContext,
		usageFunc:    disk.UsageWithContext,
		countsFunc:   cpu.CountsWithContext,
	}
}

// Resolve checks the configured sensor, interface and array path against
// the host and substitutes fallbacks where they are missing.
func Resolve(ctx context.Context, hc config.HostConfig) Resolution {
	return defaultResolver().resolve(ctx, hc)
}

func (r resolver) resolve(ctx context.Context, hc config.HostConfig) Resolution {
	var res Resolution
	res.TempSensor, res.Warnings = r.resolveSensor(ctx, hc.TempSensor, res.Warnings)
	res.Interface, res.Warnings = r.resolveInterface(ctx, hc.NetworkInterface, res.Warnings)
	res.ArrayPath, res.Warnings = r.resolveArrayPath(ctx, hc.ArrayPath, res.Warnings)

	cores, err := r.countsFunc(ctx, true)
	if err != nil || cores < 1 {
		res.Warnings = append(res.Warnings, "could not count logical cores; assuming 1")
		cores = 1
	}
	res.Cores = cores
	return res
}

func (r resolver) resolveSensor(ctx context.Context, want string, warnings []string) (string, []string) {
	temps, err := r.tempsFunc(ctx)
	// gopsutil returns partial results alongside a warning error; only give
	// up when nothing came back.
	if len(temps) == 0 {
		msg := "no temperature sensors found; temperature disabled"
		if err != nil {
			msg = fmt.Sprintf("reading temperature sensors: %v; temperature disabled", err)
		}
		return "", append(warnings, msg)
	}

	if want != "" {
		if _, ok := findSensor(temps, want); ok {
			return want, warnings
		}
	}
	for _, name := range sensorFallbacks {
		if _, ok := findSensor(temps, name); ok {
			if want != "" {
				warnings = append(warnings, fmt.Sprintf("temperature sensor %q not found; using %q", want, name))
			}
			return name, warnings
		}
	}

	return "", append(warnings, fmt.Sprintf(
		"temperature sensor %q not found and no fallback available (have: %s); temperature disabled",
		want, strings.Join(sensorNames(temps), ", ")))
}

// sensorNames lists the distinct chip names, the part of each key before
// the first underscore.
func sensorNames(temps []sensors.TemperatureStat) []string {
	seen := make(map[string]bool)
	for _, t := range temps {
		name, _, _ := strings.Cut(t.SensorKey, "_")
		seen[name] = true
	}
	return sortedKeys(seen)
}

func (r resolver) resolveInterface(ctx context.Context, want string, warnings []string) (string, []string) {
	if want == "" {
		return "", warnings
	}
	stats, err := r.countersFunc(ctx, true)
	if err != nil {
		return "", append(warnings, fmt.Sprintf("listing network interfaces: %v; using aggregate throughput", err))
	}
	names := make([]string, 0, len(stats))
	for _, s := range stats {
		if s.Name == want {
			return want, warnings
		}
		names = append(names, s.Name)
	}
	return "", append(warnings, fmt.Sprintf(
		"network interface %q not found (have: %s); using aggregate throughput",
		want, strings.Join(names, ", ")))
}

func (r resolver) resolveArrayPath(ctx context.Context, want string, warnings []string) (string, []string) {
	if want == "" {
		want = "/"
	}
	if _, err := r.usageFunc(ctx, want); err != nil {
		if want == "/" {
			return want, append(warnings, fmt.Sprintf("reading usage of /: %v", err))
		}
		return "/", append(warnings, fmt.Sprintf("array path %q unusable (%v); using /", want, err))
	}
	return want, warnings
}

// NewProbes creates the four host probes for res, in registry order.
func NewProbes(res Resolution) []collectors.Probe {
	return []collectors.Probe{
		NewCPUProbe(res.TempSensor),
		NewCoresProbe(res.Cores),
		NewDiskProbe(),
		NewNetworkProbe(res.Interface),
	}
}
