package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/pulse-screen/state"
)

func testPIDFile(t *testing.T) *pidFile {
	t.Helper()
	dir, err := state.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &pidFile{dir: dir, logger: slog.New(slog.DiscardHandler)}
}

func TestPIDFileAcquireRelease(t *testing.T) {
	p := testPIDFile(t)

	if err := p.acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	data, err := os.ReadFile(p.dir.Path(pidFileName))
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file = %q, want %d", got, os.Getpid())
	}

	// Our own PID never counts as another instance.
	if running, _ := p.running(); running {
		t.Error("own PID reported as a running instance")
	}

	p.release()
	if _, err := os.Stat(p.dir.Path(pidFileName)); !os.IsNotExist(err) {
		t.Errorf("PID file still present after release: %v", err)
	}
}

func TestPIDFileStaleAndCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"corrupt", "not-a-pid"},
		{"stale", "2147483646"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPIDFile(t)
			if err := p.dir.WriteFile(pidFileName, []byte(tt.content)); err != nil {
				t.Fatal(err)
			}
			if running, _ := p.running(); running {
				t.Fatal("expected no running instance")
			}
			if _, err := os.Stat(p.dir.Path(pidFileName)); !os.IsNotExist(err) {
				t.Error("bad PID file should have been removed")
			}
			if err := p.acquire(); err != nil {
				t.Errorf("acquire after cleanup: %v", err)
			}
		})
	}
}

func TestPIDFileLiveInstance(t *testing.T) {
	ppid := os.Getppid()
	if ppid <= 1 {
		t.Skip("no parent process to stand in for a live instance")
	}
	p := testPIDFile(t)
	if err := p.dir.WriteFile(pidFileName, []byte(strconv.Itoa(ppid))); err != nil {
		t.Fatal(err)
	}
	err := p.acquire()
	if err == nil {
		t.Fatal("expected an error while another instance runs")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("error = %v, want already running", err)
	}
}
