// Package config provides configuration parsing for pulse-screen.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinRefresh is the shortest sampling interval, in seconds, the
	// scheduler will accept.
	MinRefresh = 0.5

	// MaxHistSize is the largest number of points a chart can hold.
	MaxHistSize = 501

	// MinWorkers is the number of pool workers a cycle needs: one collector
	// job, four probes, the generator and the presenter.
	MinWorkers = 7
)

// Config represents the pulse-screen configuration.
type Config struct {
	// Sampling holds cadence settings.
	Sampling SamplingConfig `yaml:"sampling"`

	// Profiler holds timeout calibration settings.
	Profiler ProfilerConfig `yaml:"profiler"`

	// Escalation holds drop handling settings.
	Escalation EscalationConfig `yaml:"escalation"`

	// Display holds frame layout settings.
	Display DisplayConfig `yaml:"display"`

	// Host holds metric source selection.
	Host HostConfig `yaml:"host"`

	// Output holds sink settings.
	Output OutputConfig `yaml:"output"`

	// Metrics holds the Prometheus exporter settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Journal holds the run journal settings.
	Journal JournalConfig `yaml:"journal"`

	// Logging holds log output settings.
	Logging LoggingConfig `yaml:"logging"`

	// State holds the runtime state directory (PID file, health file).
	State StateConfig `yaml:"state"`
}

// SamplingConfig holds cadence settings.
type SamplingConfig struct {
	// Refresh is the sampling interval in seconds. Each probe blocks for
	// this long while measuring.
	Refresh float64 `yaml:"refresh"`
	// PlotMinutes is how much history the charts show.
	PlotMinutes float64 `yaml:"plot_minutes"`
	// Workers is the size of the stage worker pool.
	Workers int `yaml:"workers"`
	// ReportInterval is a duration string (e.g. "24h") between periodic
	// statistics reports.
	ReportInterval string `yaml:"report_interval"`
}

// ProfilerConfig holds timeout calibration settings.
type ProfilerConfig struct {
	// Enabled turns on warm-up calibration and load-scaled budgets.
	Enabled bool `yaml:"enabled"`
	// Warmup is the number of cycles observed before a baseline is derived.
	Warmup int `yaml:"warmup"`
	// LoadSensitivity divides the CPU load percentage in the budget
	// feedback term. Higher values react less to load.
	LoadSensitivity float64 `yaml:"load_sensitivity"`
	// ReferenceRender is the full render time the calibration report
	// compares against.
	ReferenceRender string `yaml:"reference_render"`
}

// EscalationConfig holds drop handling settings.
type EscalationConfig struct {
	// Every is the number of drops between budget escalations.
	Every int `yaml:"every"`
	// Factor multiplies all budgets at each escalation.
	Factor float64 `yaml:"factor"`
	// MaxEscalations caps how many times budgets are widened. Zero means
	// budgets are never widened.
	MaxEscalations int `yaml:"max_escalations"`
	// DropCeiling is the drop count above which the process aborts.
	DropCeiling int `yaml:"drop_ceiling"`
}

// DisplayConfig holds frame layout settings.
type DisplayConfig struct {
	// Width is the panel width in pixels before rotation.
	Width int `yaml:"width"`
	// Height is the panel height in pixels before rotation.
	Height int `yaml:"height"`
	// Rotation is one of 0, 90, 180 or 270 degrees.
	Rotation int `yaml:"rotation"`
	// Splash is an optional image shown at startup and left up on exit.
	Splash string `yaml:"splash"`
	// Debug draws render timing and frame counters on the frame.
	Debug bool `yaml:"debug"`
	// ProfileStage selects which timing the debug line shows:
	// "generate", "present" or "both".
	ProfileStage string `yaml:"profile_stage"`
	// BarColors are the hex colors of the array and memory usage bars.
	BarColors []string `yaml:"bar_colors"`
}

// HostConfig holds metric source selection.
type HostConfig struct {
	// TempSensor is the preferred temperature sensor name (e.g. "coretemp").
	TempSensor string `yaml:"temp_sensor"`
	// NetworkInterface is the interface whose throughput is charted.
	NetworkInterface string `yaml:"network_interface"`
	// ArrayPath is the mount point whose usage is shown.
	ArrayPath string `yaml:"array_path"`
}

// OutputConfig holds sink settings.
type OutputConfig struct {
	// PNG writes each frame to an image file.
	PNG PNGOutput `yaml:"png"`
	// Terminal prints each frame to stdout.
	Terminal TerminalOutput `yaml:"terminal"`
	// TUI shows frames in an interactive Bubbletea program.
	TUI bool `yaml:"tui"`
}

// PNGOutput configures the PNG file sink.
type PNGOutput struct {
	// Enabled turns the sink on.
	Enabled bool `yaml:"enabled"`
	// Path is the output file, replaced atomically on every frame.
	Path string `yaml:"path"`
}

// TerminalOutput configures the terminal sink.
type TerminalOutput struct {
	// Enabled turns the sink on.
	Enabled bool `yaml:"enabled"`
	// Mode is "text" for a styled panel or "image" for half-block pixels.
	Mode string `yaml:"mode"`
}

// MetricsConfig holds the Prometheus exporter settings.
type MetricsConfig struct {
	// Enabled turns the exporter on.
	Enabled bool `yaml:"enabled"`
	// Listen is the address the /metrics endpoint binds to.
	Listen string `yaml:"listen"`
}

// JournalConfig holds the run journal settings.
type JournalConfig struct {
	// Enabled turns the journal on.
	Enabled bool `yaml:"enabled"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// File is an optional log file in addition to the console.
	File string `yaml:"file"`
	// Verbose enables debug level logging.
	Verbose bool `yaml:"verbose"`
}

// StateConfig holds the runtime state directory.
type StateConfig struct {
	// Dir holds the PID file and health file.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		Sampling: SamplingConfig{
			Refresh:        3,
			PlotMinutes:    5,
			Workers:        MinWorkers,
			ReportInterval: "24h",
		},
		Profiler: ProfilerConfig{
			Enabled:         true,
			Warmup:          150,
			LoadSensitivity: 20,
			ReferenceRender: "140ms",
		},
		Escalation: EscalationConfig{
			Every:          10,
			Factor:         1.25,
			MaxEscalations: 4,
			DropCeiling:    40,
		},
		Display: DisplayConfig{
			Width:        320,
			Height:       240,
			Rotation:     0,
			Debug:        false,
			ProfileStage: "both",
			BarColors:    []string{"#375e1f", "#4a2a7a"},
		},
		Host: HostConfig{
			TempSensor:       "coretemp",
			NetworkInterface: "eth0",
			ArrayPath:        "/",
		},
		Output: OutputConfig{
			PNG: PNGOutput{
				Enabled: true,
				Path:    filepath.Join(stateDir, "frame.png"),
			},
			Terminal: TerminalOutput{
				Enabled: false,
				Mode:    "text",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    filepath.Join(stateDir, "journal.db"),
		},
		State: StateConfig{
			Dir: stateDir,
		},
	}
}

// defaultStateDir follows XDG_STATE_HOME, falling back to ~/.local/state.
func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "pulse-screen")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "pulse-screen")
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return config, nil
}

// Normalize replaces out-of-range values that have a safe fallback and
// returns one warning per replacement. It should run before Validate.
func (c *Config) Normalize() []string {
	var warnings []string

	if c.Sampling.Refresh < MinRefresh {
		warnings = append(warnings, fmt.Sprintf("refresh rate %.2fs is too low, using %.1fs", c.Sampling.Refresh, MinRefresh))
		c.Sampling.Refresh = MinRefresh
	}
	if c.Sampling.PlotMinutes < 1 {
		warnings = append(warnings, fmt.Sprintf("plot duration %.2fmin is too short, using 1min", c.Sampling.PlotMinutes))
		c.Sampling.PlotMinutes = 1
	}
	switch c.Display.Rotation {
	case 0, 90, 180, 270:
	default:
		warnings = append(warnings, fmt.Sprintf("image rotation %d is invalid, using 0", c.Display.Rotation))
		c.Display.Rotation = 0
	}
	switch c.Display.ProfileStage {
	case "generate", "present", "both":
	default:
		warnings = append(warnings, fmt.Sprintf("display.profile_stage %q is invalid, using \"both\"", c.Display.ProfileStage))
		c.Display.ProfileStage = "both"
	}
	if _, truncated := c.HistSize(); truncated {
		warnings = append(warnings, fmt.Sprintf("plot history of %.1fmin does not fit, charts will hold %d points", c.Sampling.PlotMinutes, MaxHistSize))
	}

	return warnings
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	if c.Sampling.Refresh < MinRefresh {
		return fmt.Errorf("sampling.refresh must be at least %.1f, got %v", MinRefresh, c.Sampling.Refresh)
	}
	if c.Sampling.Workers < MinWorkers {
		return fmt.Errorf("sampling.workers must be at least %d, got %d", MinWorkers, c.Sampling.Workers)
	}
	if _, err := time.ParseDuration(c.Sampling.ReportInterval); err != nil {
		return fmt.Errorf("sampling.report_interval: %w", err)
	}

	if c.Profiler.Enabled && c.Profiler.Warmup < 2 {
		return fmt.Errorf("profiler.warmup must be at least 2, got %d", c.Profiler.Warmup)
	}
	if c.Profiler.LoadSensitivity <= 0 {
		return fmt.Errorf("profiler.load_sensitivity must be positive, got %v", c.Profiler.LoadSensitivity)
	}
	if _, err := time.ParseDuration(c.Profiler.ReferenceRender); err != nil {
		return fmt.Errorf("profiler.reference_render: %w", err)
	}

	if c.Escalation.Every <= 0 {
		return fmt.Errorf("escalation.every must be positive, got %d", c.Escalation.Every)
	}
	if c.Escalation.Factor < 1 {
		return fmt.Errorf("escalation.factor must be at least 1, got %v", c.Escalation.Factor)
	}
	if c.Escalation.MaxEscalations < 0 {
		return fmt.Errorf("escalation.max_escalations must be non-negative, got %d", c.Escalation.MaxEscalations)
	}
	if c.Escalation.DropCeiling <= 0 {
		return fmt.Errorf("escalation.drop_ceiling must be positive, got %d", c.Escalation.DropCeiling)
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if len(c.Display.BarColors) != 2 {
		return fmt.Errorf("display.bar_colors needs exactly 2 entries, got %d", len(c.Display.BarColors))
	}

	if c.Output.PNG.Enabled && c.Output.PNG.Path == "" {
		return errors.New("output.png.path is required when the png sink is enabled")
	}
	if c.Output.Terminal.Mode != "text" && c.Output.Terminal.Mode != "image" {
		return fmt.Errorf("output.terminal.mode must be 'text' or 'image', got %q", c.Output.Terminal.Mode)
	}
	if c.Output.TUI && c.Output.Terminal.Enabled {
		return errors.New("output.tui and output.terminal cannot both write to the terminal")
	}
	if !c.Output.PNG.Enabled && !c.Output.Terminal.Enabled && !c.Output.TUI {
		return errors.New("output: at least one sink must be enabled")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	if c.State.Dir == "" {
		return errors.New("state.dir is required")
	}

	return nil
}

// RefreshInterval returns the sampling interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Sampling.Refresh * float64(time.Second))
}

// SetRefreshInterval stores d as the sampling interval in seconds.
func (c *Config) SetRefreshInterval(d time.Duration) {
	c.Sampling.Refresh = d.Seconds()
}

// HistSize returns the number of chart points covering PlotMinutes at the
// current refresh rate, and whether it had to be capped at MaxHistSize.
func (c *Config) HistSize() (int, bool) {
	if c.Sampling.Refresh <= 0 {
		return MaxHistSize, true
	}
	n := int(math.Floor(c.Sampling.PlotMinutes*60/c.Sampling.Refresh)) + 1
	if n > MaxHistSize {
		return MaxHistSize, true
	}
	return n, false
}

// ReportEvery returns the periodic report interval. Invalid values fall
// back to 24 hours; Validate reports them.
func (c *Config) ReportEvery() time.Duration {
	d, err := time.ParseDuration(c.Sampling.ReportInterval)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ReferenceRenderTime returns the reference render duration used in the
// calibration report.
func (c *Config) ReferenceRenderTime() time.Duration {
	d, err := time.ParseDuration(c.Profiler.ReferenceRender)
	if err != nil || d <= 0 {
		return 140 * time.Millisecond
	}
	return d
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
