//go:build linux

package sysmetrics

import (
	"time"

	"golang.org/x/sys/unix"
)

// getSystemUptime returns the system uptime on Linux via sysinfo(2).
func getSystemUptime() time.Duration {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return time.Duration(info.Uptime) * time.Second
}
