package schedule

// Observer receives scheduler events. Calls are made synchronously from the
// scheduler goroutine, so their time counts against the cycle interval:
// implementations should finish in a few milliseconds, such as one small
// file or database write.
type Observer interface {
	CycleFinished(o Outcome, b Budget)
	Calibrated(c Calibration)
	Escalated(d DropStats, b Budget)
}

// Observers fans events out to each member.
type Observers []Observer

func (obs Observers) CycleFinished(o Outcome, b Budget) {
	for _, ob := range obs {
		ob.CycleFinished(o, b)
	}
}

func (obs Observers) Calibrated(c Calibration) {
	for _, ob := range obs {
		ob.Calibrated(c)
	}
}

func (obs Observers) Escalated(d DropStats, b Budget) {
	for _, ob := range obs {
		ob.Escalated(d, b)
	}
}
