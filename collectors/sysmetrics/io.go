package sysmetrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	psnet "github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rate turns two counter readings into a per-second rate. Counter resets
// are treated as a delta of their absolute difference.
func rate(before, after uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	var delta uint64
	if after >= before {
		delta = after - before
	} else {
		delta = before - after
	}
	return float64(delta) / elapsed.Seconds()
}

// DiskProbe measures system-wide disk read and write throughput.
type DiskProbe struct {
	countersFunc func(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewDiskProbe creates a DiskProbe.
func NewDiskProbe() *DiskProbe {
	return &DiskProbe{
		countersFunc: disk.IOCountersWithContext,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Name returns the probe's unique identifier.
func (p *DiskProbe) Name() string { return "disk" }

// Description returns a human-readable description of what this probe measures.
func (p *DiskProbe) Description() string { return "Disk read/write throughput" }

// Keys lists the metric keys this probe produces.
func (p *DiskProbe) Keys() []string {
	return []string{sample.KeyDiskRead, sample.KeyDiskWrite}
}

// Collect samples the disk counters, waits interval, and samples again.
func (p *DiskProbe) Collect(ctx context.Context, interval time.Duration) (collectors.Reading, error) {
	r0, w0, err := p.totals(ctx)
	if err != nil {
		return nil, err
	}
	start := p.now()
	if err := p.sleep(ctx, interval); err != nil {
		return nil, err
	}
	r1, w1, err := p.totals(ctx)
	if err != nil {
		return nil, err
	}
	elapsed := p.now().Sub(start)

	return collectors.Reading{
		sample.KeyDiskRead:  sample.Num(rate(r0, r1, elapsed)),
		sample.KeyDiskWrite: sample.Num(rate(w0, w1, elapsed)),
	}, nil
}

func (p *DiskProbe) totals(ctx context.Context) (read, write uint64, err error) {
	counters, err := p.countersFunc(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("sysmetrics: disk counters: %w", err)
	}
	for _, name := range wholeDisks(counters) {
		read += counters[name].ReadBytes
		write += counters[name].WriteBytes
	}
	return read, write, nil
}

// wholeDisks returns the device names that are not partitions of another
// listed device (sda1 of sda, nvme0n1p2 of nvme0n1), sorted.
func wholeDisks(counters map[string]disk.IOCountersStat) []string {
	var names []string
	for name := range counters {
		partition := false
		for other := range counters {
			if isPartitionOf(name, other) {
				partition = true
				break
			}
		}
		if !partition {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// isPartitionOf reports whether name is a partition of dev: "sda1" of
// "sda", or "nvme0n1p2" of "nvme0n1" when dev ends in a digit.
func isPartitionOf(name, dev string) bool {
	if dev == "" || name == dev || !strings.HasPrefix(name, dev) {
		return false
	}
	rest := name[len(dev):]
	last := dev[len(dev)-1]
	if last >= '0' && last <= '9' {
		if rest[0] != 'p' {
			return false
		}
		rest = rest[1:]
	}
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NetworkProbe measures receive and send throughput of one interface, or
// of all interfaces when iface is empty.
type NetworkProbe struct {
	iface string

	countersFunc   func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)
	interfacesFunc func(ctx context.Context) (psnet.InterfaceStatList, error)
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewNetworkProbe creates a NetworkProbe. An empty iface sums all interfaces.
func NewNetworkProbe(iface string) *NetworkProbe {
	return &NetworkProbe{
		iface:          iface,
		countersFunc:   psnet.IOCountersWithContext,
		interfacesFunc: psnet.InterfacesWithContext,
		now:            time.Now,
		sleep:          sleepCtx,
	}
}

// Name returns the probe's unique identifier.
func (p *NetworkProbe) Name() string { return "network" }

// Description returns a human-readable description of what this probe measures.
func (p *NetworkProbe) Description() string { return "Network receive/send throughput" }

// Keys lists the metric keys this probe produces.
func (p *NetworkProbe) Keys() []string {
	return []string{sample.KeyNetRecv, sample.KeyNetSent, sample.KeyNetUp}
}

// Collect samples the interface counters, waits interval, and samples again.
func (p *NetworkProbe) Collect(ctx context.Context, interval time.Duration) (collectors.Reading, error) {
	up := true
	if p.iface != "" {
		up = p.linkUp(ctx)
	}

	recv0, sent0, err := p.counters(ctx)
	if err != nil {
		return nil, err
	}
	start := p.now()
	if err := p.sleep(ctx, interval); err != nil {
		return nil, err
	}
	recv1, sent1, err := p.counters(ctx)
	if err != nil {
		return nil, err
	}
	elapsed := p.now().Sub(start)

	return collectors.Reading{
		sample.KeyNetRecv: sample.Num(rate(recv0, recv1, elapsed)),
		sample.KeyNetSent: sample.Num(rate(sent0, sent1, elapsed)),
		sample.KeyNetUp:   sample.Bool(up),
	}, nil
}

func (p *NetworkProbe) counters(ctx context.Context) (recv, sent uint64, err error) {
	stats, err := p.countersFunc(ctx, p.iface != "")
	if err != nil {
		return 0, 0, fmt.Errorf("sysmetrics: net counters: %w", err)
	}
	if p.iface == "" {
		if len(stats) == 0 {
			return 0, 0, fmt.Errorf("sysmetrics: net counters: no data")
		}
		return stats[0].BytesRecv, stats[0].BytesSent, nil
	}
	for _, s := range stats {
		if s.Name == p.iface {
			return s.BytesRecv, s.BytesSent, nil
		}
	}
	return 0, 0, fmt.Errorf("sysmetrics: interface %q not found", p.iface)
}

// linkUp reports whether the interface carries the "up" flag. Lookup
// failures count as up so a transient error does not raise the alarm.
func (p *NetworkProbe) linkUp(ctx context.Context) bool {
	ifaces, err := p.interfacesFunc(ctx)
	if err != nil {
		return true
	}
	for _, ifc := range ifaces {
		if ifc.Name != p.iface {
			continue
		}
		for _, f := range ifc.Flags {
			if f == "up" {
				return true
			}
		}
		return false
	}
	return true
}

// Compile-time interface checks.
var (
	_ collectors.Probe = (*DiskProbe)(nil)
	_ collectors.Probe = (*NetworkProbe)(nil)
)
