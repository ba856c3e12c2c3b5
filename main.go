// pulse-screen samples host metrics on a fixed interval and renders them to
// a small status panel.
//
// Every cycle collects a sample, renders a frame from the previous samples
// and presents it to the configured outputs, each stage under a time
// budget. Budgets are calibrated from a warm-up period, scaled with host
// load and widened when cycles keep timing out.
//
// Usage:
//
//	pulse-screen [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: ~/.config/pulse-screen/config.yaml)
//	-refresh float    Sampling interval in seconds (overrides config)
//	-tui              Show frames in an interactive TUI
//	-png string       Write frames to this PNG file
//	-terminal string  Draw frames in the terminal (text|image)
//	-demo             Use synthetic probes instead of the host
//	-health           Check whether a running instance is healthy
//	-json             Output health check as JSON (with -health)
//	-history int      Print the last N runs from the journal
//	-verbose          Enable verbose logging
//	-version          Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/config"
	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/internal/format"
	"gitlab.com/tinyland/lab/pulse-screen/journal"
	"gitlab.com/tinyland/lab/pulse-screen/logging"
	"gitlab.com/tinyland/lab/pulse-screen/state"
)

func main() {
	started := time.Now()

	var (
		configPath  = flag.String("config", "", "Path to configuration file (default: ~/.config/pulse-screen/config.yaml)")
		refresh     = flag.Float64("refresh", 0, "Sampling interval in seconds (overrides config)")
		runTUI      = flag.Bool("tui", false, "Show frames in an interactive TUI")
		pngPath     = flag.String("png", "", "Write frames to this PNG file")
		termMode    = flag.String("terminal", "", "Draw frames in the terminal (text|image)")
		demo        = flag.Bool("demo", false, "Use synthetic probes instead of the host")
		runHealth   = flag.Bool("health", false, "Check whether a running instance is healthy")
		healthJSON  = flag.Bool("json", false, "Output health check as JSON (with -health)")
		history     = flag.Int("history", 0, "Print the last N runs from the journal")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pulse-screen %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *refresh > 0 {
		cfg.Sampling.Refresh = *refresh
	}
	if *runTUI {
		cfg.Output.TUI = true
	}
	if *pngPath != "" {
		cfg.Output.PNG.Enabled = true
		cfg.Output.PNG.Path = *pngPath
	}
	if *termMode != "" {
		cfg.Output.Terminal.Enabled = true
		cfg.Output.Terminal.Mode = *termMode
	}
	if *verbose {
		cfg.Logging.Verbose = true
	}

	if *runHealth {
		dir, err := state.Open(cfg.State.Dir, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "state directory: %v\n", err)
			os.Exit(1)
		}
		os.Exit(checkHealth(dir, *healthJSON))
	}

	if *history > 0 {
		if err := printHistory(cfg.Journal.Path, *history); err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Log lines would tear the TUI, so the console sink is off in that mode.
	logger, closeLog := logging.Must(logging.Options{
		Verbose: cfg.Logging.Verbose,
		File:    cfg.Logging.File,
		Quiet:   cfg.Output.TUI,
	})

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	runErr := run(ctx, cfg, runOptions{started: started, demo: *demo}, logger)
	cancel()
	closeLog()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "pulse-screen: %v\n", runErr)
	}
	os.Exit(exitCode(runErr))
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pulse-screen", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pulse-screen", "config.yaml")
}

// printHistory lists the most recent runs recorded in the journal.
func printHistory(path string, limit int) error {
	j, err := journal.Open(path, nil)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tHOST\tINTERVAL\tSAMPLES\tDROPS\tCAL\tESC\tEXIT\tREASON")
	for _, r := range runs {
		exit, reason := "-", "running"
		if r.Finished {
			exit = fmt.Sprint(r.ExitCode)
			reason = format.Ellipsis(r.ExitReason, 48)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			format.Ago(r.StartedAt), r.Host, format.Compact(r.Interval),
			r.Samples, r.Drops, r.Calibrations, r.Escalations, exit, reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if last := runs[0]; last.Finished {
		fmt.Printf("\nlast run: %s over %s\n", last.ExitReason,
			display.FormatDuration(last.FinishedAt.Sub(last.StartedAt)))
	}
	return nil
}
