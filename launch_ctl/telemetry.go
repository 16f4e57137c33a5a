package launch_ctl

// Telemetry is a read-only snapshot of the launch core for display.
type Telemetry struct {
	T    float64 `json:"t"`
	Mode string  `json:"mode"`

	Launcher       string  `json:"launcher_state"`
	MeasuredRPM    float64 `json:"measured_rpm"`
	TargetRPM      float64 `json:"target_rpm"`
	LockedRPM      float64 `json:"locked_rpm"`
	Locked         bool    `json:"locked"`
	LockedDistance float64 `json:"locked_distance_m"`
	HasDistance    bool    `json:"has_distance"`
	FlywheelPower  float64 `json:"flywheel_power"`
	RecoveryTime   float64 `json:"recovery_time_s"`
	Solve          string  `json:"solve"`

	Indexer      string  `json:"indexer_state"`
	IndexerAngle float64 `json:"indexer_angle_deg"`
	IndexerError float64 `json:"indexer_error_deg"`
	IndexerPower float64 `json:"indexer_power"`

	FeedPosition float64 `json:"feed_position"`
	Feeding      bool    `json:"feeding"`

	Intake      string  `json:"intake_state"`
	IntakePower float64 `json:"intake_power"`

	Stage      string `json:"stage"`
	Shot       int    `json:"shot"`
	ShotsFired int    `json:"shots_fired"`

	Aligning bool    `json:"aligning"`
	TurnRate float64 `json:"turn_rate"`

	Range    float64 `json:"range_m"`
	HasRange bool    `json:"has_range"`
	Zone     string  `json:"zone"`
}

// Snapshot captures the state left by the latest Tick.
func (s *Shooter) Snapshot() Telemetry {
	p := s.tune.Current()
	l := s.launcher
	lockedRPM, locked := l.LockedRPM()
	lockedDistance, hasDistance := l.LockedDistance()
	burst := s.seq.State()

	tm := Telemetry{
		T:              s.out.T,
		Mode:           s.mode.String(),
		Launcher:       l.State().Phase.String(),
		MeasuredRPM:    l.MeasuredRPM(),
		TargetRPM:      l.TargetRPM(),
		LockedRPM:      lockedRPM,
		Locked:         locked,
		LockedDistance: lockedDistance,
		HasDistance:    hasDistance,
		FlywheelPower:  s.out.FlywheelPower,
		Solve:          s.outcome.String(),
		Indexer:        s.indexer.State().Phase.String(),
		IndexerAngle:   s.indexer.Angle(),
		IndexerError:   s.indexer.Error(),
		IndexerPower:   s.out.IndexerPower,
		FeedPosition:   s.feeder.Position(),
		Feeding:        s.feeder.Feeding(),
		Intake:         s.intake.State().String(),
		IntakePower:    s.out.IntakePower,
		Stage:          burst.Stage.String(),
		Shot:           burst.Shot,
		ShotsFired:     s.seq.ShotsFired(),
		Aligning:       s.aligner.Active(),
		TurnRate:       s.out.TurnRate,
		Zone:           ZoneUnknown.String(),
	}
	if locked {
		tm.RecoveryTime = PredictRecoveryTime(p, lockedRPM)
	}
	if s.rng.HasTarget() {
		if d, ok := s.rng.RangeToGoal(s.side); ok {
			tm.Range = d
			tm.HasRange = true
			tm.Zone = ClassifyZone(p.Zones, d).String()
		}
	}
	return tm
}
