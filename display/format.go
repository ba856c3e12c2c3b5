package display

import (
	"fmt"
	"math"
	"time"
)

var byteSymbols = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes renders n with a binary-prefix unit and one decimal:
// 10000 is "9.8KiB", 100001221 is "95.4MiB", 512 is "512.0B".
func FormatBytes(n float64) string {
	for i := len(byteSymbols) - 1; i > 0; i-- {
		unit := math.Ldexp(1, 10*i)
		if math.Abs(n) >= unit {
			return fmt.Sprintf("%.1f%s", n/unit, byteSymbols[i])
		}
	}
	return fmt.Sprintf("%.1f%s", n, byteSymbols[0])
}

// FormatDuration renders d as "H:MM:SS", prefixed by "N day(s), " past a
// day. Sub-second precision is dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60

	clock := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

// FormatMillis renders d in milliseconds with one decimal, as "12.3ms".
func FormatMillis(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
