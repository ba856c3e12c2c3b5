// pulse-frame renders a single panel frame from synthetic samples, for
// checking layout, rotation and colors without a host or a scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/collectors"
	"gitlab.com/tinyland/lab/pulse-screen/config"
	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/pool"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
	"gitlab.com/tinyland/lab/pulse-screen/sink"
)

type options struct {
	samples  int
	rotation int
	debug    bool
	netDown  bool
}

func main() {
	out := flag.String("out", "frame.png", "PNG file to write")
	samples := flag.Int("samples", 60, "Number of synthetic samples in the history")
	rotation := flag.Int("rotation", 0, "Image rotation (0|90|180|270)")
	debug := flag.Bool("debug", false, "Include the debug line")
	netDown := flag.Bool("net-down", false, "Mark the network link as down")
	terminal := flag.String("terminal", "", "Also draw the frame in the terminal (text|image)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	frame, err := renderDemo(ctx, options{
		samples:  *samples,
		rotation: *rotation,
		debug:    *debug,
		netDown:  *netDown,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}

	sinks := []sink.Sink{sink.NewPNGSink(*out)}
	if *terminal != "" {
		sinks = append(sinks, sink.NewTerminalSink(*terminal))
	}
	if err := sink.NewPresenter(nil, sinks...).Present(ctx, frame); err != nil {
		fmt.Fprintf(os.Stderr, "present failed: %v\n", err)
		os.Exit(1)
	}

	b := frame.Image.Bounds()
	fmt.Printf("wrote %s (%dx%d, %d samples, generated in %s)\n",
		*out, b.Dx(), b.Dy(), frame.Seq, frame.GenDuration.Round(time.Microsecond))
}

// renderDemo runs the stub probes through the collector opts.samples times,
// varying their readings, and renders the resulting history.
func renderDemo(ctx context.Context, opts options) (display.Frame, error) {
	if opts.samples < 1 {
		opts.samples = 1
	}
	cfg := config.DefaultConfig()

	probes := collectors.MockHostProbes(time.Millisecond)
	registry := collectors.NewRegistry()
	for _, p := range probes {
		registry.Register(p)
	}
	workers := pool.New(config.MinWorkers)
	defer workers.Close()
	collector := collectors.NewCollector(registry, workers, time.Millisecond, nil)

	store := sample.NewStore(opts.samples)
	for i := 0; i < opts.samples; i++ {
		vary(probes, i, opts.netDown)
		t := store.Reserve()
		smp, err := collector.Collect(ctx, t.Seq, time.Second)
		if err != nil {
			store.Abandon(t)
			return display.Frame{}, fmt.Errorf("collect sample %d: %w", t.Seq, err)
		}
		if err := store.Commit(t, smp); err != nil {
			return display.Frame{}, err
		}
	}

	gen := display.NewGenerator(display.Options{
		Width:        cfg.Display.Width,
		Height:       cfg.Display.Height,
		Rotation:     opts.rotation,
		HistSize:     opts.samples,
		Debug:        opts.debug,
		ProfileStage: cfg.Display.ProfileStage,
		BarColors:    cfg.Display.BarColors,
	})
	return gen.Generate(store.Read(), display.Overlay{
		Hostname: "demo",
		IP:       "127.0.0.1",
		Uptime:   26*time.Hour + 3*time.Minute,
		Memory:   display.Usage{Used: 3 << 30, Total: 8 << 30, Percent: 37.5},
		Array:    display.Usage{Used: 6 << 40, Total: 16 << 40, Percent: 37.5},
		Samples:  uint64(opts.samples),
		Elapsed:  time.Duration(opts.samples) * 3 * time.Second,
	})
}

// vary rewrites the stub readings for round i so the charts have shape.
func vary(probes []*collectors.StubProbe, i int, netDown bool) {
	phase := float64(i) / 6
	wave := func(base, amp, offset float64) sample.Value {
		return sample.Num(math.Max(0, base+amp*math.Sin(phase+offset)))
	}
	for _, p := range probes {
		switch p.ProbeName {
		case "cpu":
			p.Values = collectors.Reading{
				sample.KeyCPUPercent: wave(40, 30, 0),
				sample.KeyCPUFreqGHz: wave(3.2, 0.6, 1),
				sample.KeyCPUTemp:    wave(55, 10, 0.5),
			}
		case "cores":
			r := collectors.Reading{}
			for c := 0; c < 8; c++ {
				r[sample.CoreKey(c)] = wave(45, 45, float64(c))
			}
			p.Values = r
		case "disk":
			p.Values = collectors.Reading{
				sample.KeyDiskRead:  wave(4<<20, 4<<20, 0),
				sample.KeyDiskWrite: wave(1<<20, 1<<20, 2),
			}
		case "network":
			p.Values = collectors.Reading{
				sample.KeyNetRecv: wave(2<<20, 2<<20, 1),
				sample.KeyNetSent: wave(256<<10, 256<<10, 3),
				sample.KeyNetUp:   sample.Bool(!netDown),
			}
		}
	}
}
