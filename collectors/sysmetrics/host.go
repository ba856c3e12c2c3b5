package sysmetrics

import (
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HostStatus is the point-in-time host data drawn next to the charts.
type HostStatus struct {
	Uptime time.Duration

	MemUsed    uint64
	MemTotal   uint64
	MemPercent float64

	ArrayUsed    uint64
	ArrayTotal   uint64
	ArrayPercent float64
}

// Host reads memory and array usage and system uptime. It does not block
// for a sampling interval.
type Host struct {
	arrayPath string

	memFunc    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	usageFunc  func(ctx context.Context, path string) (*disk.UsageStat, error)
	uptimeFunc func() time.Duration
}

// NewHost creates a Host reporting usage of the filesystem at arrayPath.
func NewHost(arrayPath string) *Host {
	return &Host{
		arrayPath:  arrayPath,
		memFunc:    mem.VirtualMemoryWithContext,
		usageFunc:  disk.UsageWithContext,
		uptimeFunc: getSystemUptime,
	}
}

// Status reads the current host status. Memory or array failures leave
// those fields zero and are returned joined in err.
func (h *Host) Status(ctx context.Context) (HostStatus, error) {
	st := HostStatus{Uptime: h.uptimeFunc()}

	var firstErr error
	if vm, err := h.memFunc(ctx); err == nil {
		st.MemTotal = vm.Total
		st.MemUsed = vm.Total - vm.Available
		st.MemPercent = vm.UsedPercent
	} else {
		firstErr = fmt.Errorf("sysmetrics: memory: %w", err)
	}

	if u, err := h.usageFunc(ctx, h.arrayPath); err == nil {
		st.ArrayTotal = u.Total
		st.ArrayUsed = u.Used
		st.ArrayPercent = u.UsedPercent
	} else if firstErr == nil {
		firstErr = fmt.Errorf("sysmetrics: usage of %s: %w", h.arrayPath, err)
	}

	return st, firstErr
}

// SelfStats describes this process's resource use.
type SelfStats struct {
	// CPUPercent is CPU use since the previous call, where 100 is one core.
	CPUPercent float64
	// RSS is the resident set size in bytes.
	RSS uint64
}

// Self reports resource use of the running process.
type Self struct {
	proc *process.Process
}

// NewSelf attaches to the current process.
func NewSelf(ctx context.Context) (*Self, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("sysmetrics: attach to self: %w", err)
	}
	// Prime the CPU counter so the first Stats call has a baseline.
	_, _ = p.PercentWithContext(ctx, 0)
	return &Self{proc: p}, nil
}

// Stats returns CPU use since the last call and current memory use.
func (s *Self) Stats(ctx context.Context) (SelfStats, error) {
	var st SelfStats
	pct, err := s.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return st, fmt.Errorf("sysmetrics: self cpu: %w", err)
	}
	st.CPUPercent = pct
	mi, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("sysmetrics: self memory: %w", err)
	}
	st.RSS = mi.RSS
	return st, nil
}

// LocalIP returns the address of the interface used for outbound traffic,
// or 127.0.0.1. No packet is sent.
func LocalIP() string {
	conn, err := net.Dial("udp", "10.254.254.254:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// Uptime returns the system uptime, or zero when the platform does not
// expose it.
func Uptime() time.Duration {
	return getSystemUptime()
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
