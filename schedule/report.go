package schedule

import (
	"context"
	"runtime"
	"time"

	"gitlab.com/tinyland/lab/pulse-screen/display"
)

// Report is the periodic statistics summary.
type Report struct {
	Samples uint64
	Dropped uint64
	Elapsed time.Duration
	// AvgCycle is the elapsed time per committed sample.
	AvgCycle time.Duration
	Process  ProcessStats
	// HostShare is the process CPU as a percentage of all cores.
	HostShare float64
}

// Report collects garbage, samples process statistics and logs a summary.
func (s *Scheduler) Report(ctx context.Context) Report {
	runtime.GC()

	st := s.Status()
	r := Report{
		Samples: st.Samples,
		Dropped: st.Dropped,
		Elapsed: st.Elapsed,
	}
	if st.Samples > 0 {
		r.AvgCycle = st.Elapsed / time.Duration(st.Samples)
	}
	r.Process, r.HostShare = s.processStats(ctx)

	s.logger.Info("periodic stats",
		"samples", r.Samples,
		"elapsed", display.FormatDuration(r.Elapsed),
		"drops", r.Dropped,
		"avg_cycle", display.FormatMillis(r.AvgCycle),
		"cpu_percent", round1(r.Process.CPUPercent),
		"cpu_host_percent", round1(r.HostShare),
		"rss", display.FormatBytes(float64(r.Process.RSS)))
	return r
}

func (s *Scheduler) processStats(ctx context.Context) (ProcessStats, float64) {
	if s.procStats == nil {
		return ProcessStats{}, 0
	}
	ps, err := s.procStats(ctx)
	if err != nil {
		s.logger.Debug("process stats unavailable", "error", err)
		return ProcessStats{}, 0
	}
	return ps, ps.CPUPercent / float64(s.cores)
}

// logCalibration logs the warm-up report once the baseline is set.
func (s *Scheduler) logCalibration(ctx context.Context, c Calibration) {
	st := s.Status()
	ps, share := s.processStats(ctx)

	s.logger.Info("profiler calibrated",
		"samples", c.Samples,
		"window", s.interval*time.Duration(c.Samples),
		"actual", st.Elapsed.Round(time.Millisecond),
		"generate_avg", display.FormatMillis(c.Generate.Mean),
		"generate_max", display.FormatMillis(c.Generate.Max),
		"generate_min", display.FormatMillis(c.Generate.Min),
		"generate_sd", display.FormatMillis(c.Generate.SD),
		"present_avg", display.FormatMillis(c.Present.Mean),
		"present_max", display.FormatMillis(c.Present.Max),
		"present_min", display.FormatMillis(c.Present.Min),
		"present_sd", display.FormatMillis(c.Present.SD),
		"full_render_avg", display.FormatMillis(c.FullRender),
		"reference", display.FormatMillis(c.Reference),
		"speed_percent", round1(c.SpeedPercent()),
		"cpu_percent", round1(ps.CPUPercent),
		"cpu_host_percent", round1(share),
		"rss", display.FormatBytes(float64(ps.RSS)),
		"baseline", st.Baseline.String())
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
