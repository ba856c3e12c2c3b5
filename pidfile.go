package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"gitlab.com/tinyland/lab/pulse-screen/state"
)

// pidFileName is the PID file inside the state directory.
const pidFileName = "pulse-screen.pid"

// pidFile guards against two instances driving the same outputs.
type pidFile struct {
	dir    *state.Dir
	logger *slog.Logger
}

// acquire checks for a live instance and records this process. A stale or
// corrupt PID file is replaced.
func (p *pidFile) acquire() error {
	if running, pid := p.running(); running {
		return fmt.Errorf("already running (PID %d)", pid)
	}
	pid := os.Getpid()
	if err := p.dir.WriteFile(pidFileName, []byte(strconv.Itoa(pid))); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	p.logger.Debug("wrote PID file", "path", p.dir.Path(pidFileName), "pid", pid)
	return nil
}

// release removes the PID file on shutdown.
func (p *pidFile) release() {
	if err := p.dir.Remove(pidFileName); err != nil {
		p.logger.Error("failed to remove PID file", "error", err)
	}
}

// running reports whether the PID file names a live process other than
// this one, cleaning up the file when it does not.
func (p *pidFile) running() (bool, int) {
	data, err := os.ReadFile(p.dir.Path(pidFileName))
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		p.logger.Warn("corrupt PID file, removing", "content", string(data))
		_ = p.dir.Remove(pidFileName)
		return false, 0
	}
	if pid == os.Getpid() {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		_ = p.dir.Remove(pidFileName)
		return false, 0
	}
	// Signal 0 checks existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		p.logger.Warn("stale PID file, removing", "pid", pid)
		_ = p.dir.Remove(pidFileName)
		return false, 0
	}
	return true, pid
}
