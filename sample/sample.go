// Package sample holds the metric snapshot model shared by the collector,
// the frame generator and the scheduler.
package sample

import (
	"sort"
	"strconv"
	"time"
)

// Metric keys produced by the host probes.
const (
	KeyCPUPercent = "cpu.percent"
	KeyCPUFreqGHz = "cpu.freq_ghz"
	KeyCPUTemp    = "cpu.temp_c"
	KeyDiskRead   = "disk.read_bps"
	KeyDiskWrite  = "disk.write_bps"
	KeyNetRecv    = "net.recv_bps"
	KeyNetSent    = "net.sent_bps"
	KeyNetUp      = "net.up"

	corePrefix = "cpu.core."
)

// CoreKey returns the key of the i-th logical core's load.
func CoreKey(i int) string {
	return corePrefix + strconv.Itoa(i)
}

// Value is a numeric reading or the unavailable sentinel.
type Value struct {
	v  float64
	ok bool
}

// Unavailable marks a metric the host could not provide this cycle.
var Unavailable = Value{}

// Num wraps a reading.
func Num(v float64) Value {
	return Value{v: v, ok: true}
}

// Bool encodes a flag as 1 or 0.
func Bool(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

// Float returns the reading and whether it is available.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// Available reports whether the value carries a reading.
func (v Value) Available() bool {
	return v.ok
}

// Or returns the reading, or def when unavailable.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

func (v Value) String() string {
	if !v.ok {
		return "n/a"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// Sample is an immutable set of readings from one collection cycle.
// The zero Sample has sequence 0 and no readings.
type Sample struct {
	Seq         uint64
	CollectedAt time.Time
	values      map[string]Value
}

// New builds a Sample from values. The map is copied.
func New(seq uint64, at time.Time, values map[string]Value) Sample {
	cp := make(map[string]Value, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Sample{Seq: seq, CollectedAt: at, values: cp}
}

// Get returns the reading for key, or Unavailable when absent.
func (s Sample) Get(key string) Value {
	return s.values[key]
}

// Len returns the number of readings.
func (s Sample) Len() int {
	return len(s.values)
}

// IsZero reports whether s is the empty initial Sample.
func (s Sample) IsZero() bool {
	return s.Seq == 0 && len(s.values) == 0
}

// Keys returns the metric keys in sorted order.
func (s Sample) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cores returns per-core loads in core order.
func (s Sample) Cores() []Value {
	var cores []Value
	for i := 0; ; i++ {
		v, ok := s.values[CoreKey(i)]
		if !ok {
			return cores
		}
		cores = append(cores, v)
	}
}

// Snapshot is the unit readers observe: the latest Sample and the chart
// history ending with it, oldest first.
type Snapshot struct {
	Latest  Sample
	History []Sample
}

// Series returns the history of one key, oldest first.
func (s Snapshot) Series(key string) []Value {
	out := make([]Value, len(s.History))
	for i, smp := range s.History {
		out[i] = smp.Get(key)
	}
	return out
}

// appendAndTrim returns a new slice holding history plus s, trimmed to max
// entries. The input slice is never modified, so snapshots that already
// reference it stay valid.
func appendAndTrim(history []Sample, s Sample, max int) []Sample {
	start := 0
	if len(history)+1 > max {
		start = len(history) + 1 - max
	}
	out := make([]Sample, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	return append(out, s)
}
