// Package state keeps pulse-screen's runtime files (health report, PID
// file, rendered frame) in one directory, written atomically so readers
// never observe a partial file.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Dir is a state directory.
//
//	~/.local/state/pulse-screen/
//	  health.json
//	  pulse-screen.pid
//	  frame.png
type Dir struct {
	path   string
	logger *slog.Logger
}

// Open creates the state directory with 0700 permissions if needed.
func Open(path string, logger *slog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("state: create directory %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dir{path: path, logger: logger}, nil
}

// Path returns the absolute path of name inside the directory.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.path, name)
}

// WriteFile atomically replaces name with data.
func (d *Dir) WriteFile(name string, data []byte) error {
	return WriteAtomic(d.Path(name), data, 0600)
}

// WriteJSON atomically replaces name with v encoded as indented JSON.
func (d *Dir) WriteJSON(name string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal %s: %w", name, err)
	}
	return d.WriteFile(name, encoded)
}

// ReadJSON decodes name into a new T. A missing file returns nil, nil.
// A corrupt file is removed and treated as missing.
func ReadJSON[T any](d *Dir, name string) (*T, error) {
	data, err := os.ReadFile(d.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: read %s: %w", name, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		d.logger.Warn("state: removing corrupted file", "name", name, "error", err)
		_ = os.Remove(d.Path(name))
		return nil, nil
	}
	return &v, nil
}

// Age returns how long ago name was last written, or 0 if it is missing.
func (d *Dir) Age(name string) time.Duration {
	info, err := os.Stat(d.Path(name))
	if err != nil {
		return 0
	}
	return time.Since(info.ModTime())
}

// Remove deletes name. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	if err := os.Remove(d.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove %s: %w", name, err)
	}
	return nil
}

// WriteAtomic writes data to a temp file beside path and renames it into
// place, so a concurrent reader sees either the old or the new content.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("state: create directory for %s: %w", base, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+base+"-*")
	if err != nil {
		return fmt.Errorf("state: create temp for %s: %w", base, err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any failure path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := os.Chmod(tmpName, perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("state: chmod temp for %s: %w", base, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("state: write temp for %s: %w", base, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp for %s: %w", base, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("state: rename temp for %s: %w", base, err)
	}

	success = true
	return nil
}
