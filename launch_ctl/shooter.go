package launch_ctl

import (
	"fmt"
	"io"
	"log"

	"github.com/ttacon/chalk"
)

// ShotMode is the kind of fire request being serviced.
type ShotMode int

const (
	ShotIdle ShotMode = iota + 1
	ShotSingle
	ShotContinuous
	ShotBurst
)

func (m ShotMode) String() string {
	switch m {
	case ShotIdle:
		return "IDLE"
	case ShotSingle:
		return "SINGLE"
	case ShotContinuous:
		return "CONTINUOUS"
	case ShotBurst:
		return "BURST"
	default:
		return fmt.Sprintf("ShotMode(%d)", int(m))
	}
}

type shotPhase int

const (
	phaseNone shotPhase = iota
	phaseCheck
	phaseAligning
	phaseSolve
	phaseFiring
)

// SolveOutcome records how the most recent setpoint was chosen.
type SolveOutcome struct {
	Distance    float64
	HasDistance bool
	RPM         float64
	Fallback    bool
	Err         error
}

func (o SolveOutcome) String() string {
	switch {
	case o.RPM == 0:
		return "NONE"
	case !o.HasDistance:
		return "NO_TARGET"
	case o.Err != nil:
		return o.Err.Error()
	default:
		return "SOLVED"
	}
}

// Shooter composes the launch core and runs it one control cycle at a
// time. Requests are latched and applied at the start of the next Tick.
// A Shooter is not safe for concurrent use.
type Shooter struct {
	tune    TuningSource
	rng     RangeProvider
	chassis Chassis
	log     *log.Logger

	launcher *Launcher
	indexer  *Indexer
	feeder   *Feeder
	intake   *Intake
	seq      *Sequencer
	aligner  *Aligner

	pending []func(t float64)

	mode     ShotMode
	phase    shotPhase
	side     Alliance
	shots    int
	outcome  SolveOutcome
	turning  bool
	turnRate float64
	out      Actuators
}

// NewShooter wires the launch core. chassis may be nil when realignment
// is not available; logger may be nil.
func NewShooter(tune TuningSource, rng RangeProvider, chassis Chassis, logger *log.Logger) *Shooter {
	return NewShooterWithIndexer(tune, rng, chassis, logger, NewIndexer(tune))
}

// NewShooterWithIndexer is NewShooter with a preconfigured indexer.
func NewShooterWithIndexer(tune TuningSource, rng RangeProvider, chassis Chassis, logger *log.Logger, ix *Indexer) *Shooter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Shooter{
		tune:     tune,
		rng:      rng,
		chassis:  chassis,
		log:      logger,
		launcher: NewLauncher(tune),
		indexer:  ix,
		feeder:   NewFeeder(tune),
		intake:   NewIntake(tune),
		aligner:  NewAligner(tune),
		mode:     ShotIdle,
		side:     AllianceBlue,
	}
	s.seq = NewSequencer(tune, s.launcher, s.indexer, s.feeder)
	return s
}

// Launcher exposes the flywheel controller for read-only inspection.
func (s *Shooter) Launcher() *Launcher { return s.launcher }

// Indexer exposes the magazine controller for read-only inspection.
func (s *Shooter) Indexer() *Indexer { return s.indexer }

// Feeder exposes the transfer actuator for read-only inspection.
func (s *Shooter) Feeder() *Feeder { return s.feeder }

// Intake exposes the roller for read-only inspection.
func (s *Shooter) Intake() *Intake { return s.intake }

// Sequencer exposes the burst sequencer for read-only inspection.
func (s *Shooter) Sequencer() *Sequencer { return s.seq }

// Mode is the fire request currently being serviced.
func (s *Shooter) Mode() ShotMode { return s.mode }

// LastSolve reports how the most recent setpoint was chosen.
func (s *Shooter) LastSolve() SolveOutcome { return s.outcome }

// RequestSingleShot realigns if the robot moved, solves, spins up and
// fires one ball once the flywheel is at speed.
func (s *Shooter) RequestSingleShot(side Alliance) {
	s.latch(func(t float64) { s.begin(t, ShotSingle, side, 1) })
}

// RequestContinuousFire aligns and solves once, then fires paced by
// recovery time until CancelFire or Stop.
func (s *Shooter) RequestContinuousFire(side Alliance) {
	s.latch(func(t float64) { s.begin(t, ShotContinuous, side, 0) })
}

// RequestBurst runs the autonomous burst: localization settle, then
// shots feed/fire/rotate cycles. shots <= 0 uses the configured count.
func (s *Shooter) RequestBurst(side Alliance, shots int) {
	s.latch(func(t float64) {
		if shots <= 0 {
			shots = s.tune.Current().Sequence.BurstShots
		}
		s.begin(t, ShotBurst, side, shots)
	})
}

// CancelFire aborts the active fire request. Continuous fire also stops
// the flywheel; other modes keep the locked setpoint.
func (s *Shooter) CancelFire() {
	s.latch(func(t float64) { s.cancel(s.mode == ShotContinuous) })
}

// LockToDistance spins to the solved RPM for distance, falling back to
// the default RPM when infeasible.
func (s *Shooter) LockToDistance(distance float64) {
	s.latch(func(t float64) {
		shot, err := s.launcher.LockToDistance(distance)
		rpm, _ := s.launcher.LockedRPM()
		s.outcome = SolveOutcome{Distance: distance, HasDistance: true, RPM: rpm, Fallback: err != nil, Err: err}
		if err != nil {
			s.logf(chalk.Yellow, "lock %.2fm: %v, using default %.0f rpm", distance, err, rpm)
			return
		}
		s.logf(chalk.Green, "lock %.2fm -> %.0f rpm (%.2f m/s)", distance, shot.TargetRPM, shot.RequiredVelocity)
	})
}

// LockToRPM spins to rpm and makes it the recovery setpoint.
func (s *Shooter) LockToRPM(rpm float64) {
	s.latch(func(t float64) {
		s.launcher.LockToRPM(rpm)
		locked, _ := s.launcher.LockedRPM()
		s.outcome = SolveOutcome{RPM: locked}
		s.logf(chalk.Green, "lock %.0f rpm", locked)
	})
}

// StopLauncher turns the flywheel off and abandons any fire request.
func (s *Shooter) StopLauncher() {
	s.latch(func(t float64) {
		s.cancel(false)
		s.launcher.Stop()
	})
}

// RotateIndexerRight advances the magazine one slot clockwise.
func (s *Shooter) RotateIndexerRight() {
	s.latch(func(t float64) {
		s.cancel(false)
		s.indexer.RotateRight(t)
	})
}

// RotateIndexerLeft advances the magazine one slot counter-clockwise.
func (s *Shooter) RotateIndexerLeft() {
	s.latch(func(t float64) {
		s.cancel(false)
		s.indexer.RotateLeft(t)
	})
}

// SetIndexerManualPower drives the magazine directly.
func (s *Shooter) SetIndexerManualPower(power float64) {
	s.latch(func(t float64) {
		s.cancel(false)
		s.indexer.SetManualPower(power)
	})
}

// SetLauncherManualPower drives the flywheel directly for diagnostics.
func (s *Shooter) SetLauncherManualPower(power float64) {
	s.latch(func(t float64) {
		s.cancel(false)
		s.launcher.CommandManual(power)
	})
}

// SetFeedPosition holds the transfer servo at position for servo tuning.
func (s *Shooter) SetFeedPosition(position float64) {
	s.latch(func(t float64) {
		s.cancel(false)
		s.feeder.SetPosition(position)
	})
}

// NudgeFeedPosition shifts the transfer servo target by delta.
func (s *Shooter) NudgeFeedPosition(delta float64) {
	s.latch(func(t float64) {
		s.cancel(false)
		s.feeder.Nudge(delta)
	})
}

// CollectIntake runs the intake inward. Intake commands leave fire
// requests alone.
func (s *Shooter) CollectIntake() {
	s.latch(func(t float64) { s.intake.Collect() })
}

// EjectIntake runs the intake outward.
func (s *Shooter) EjectIntake() {
	s.latch(func(t float64) { s.intake.Eject() })
}

// StopIntake idles the intake.
func (s *Shooter) StopIntake() {
	s.latch(func(t float64) { s.intake.Stop() })
}

// Stop returns every component to its idle/off state.
func (s *Shooter) Stop() {
	s.latch(func(t float64) {
		s.cancel(false)
		s.launcher.Stop()
		s.indexer.Stop()
		s.feeder.Retract()
		s.intake.Stop()
	})
}

// Tick runs one control cycle: apply requests, align/solve, launcher,
// sequencer, indexer, then actuator compensation.
func (s *Shooter) Tick(in Sensors) Actuators {
	t := in.T
	for _, fn := range s.pending {
		fn(t)
	}
	s.pending = s.pending[:0]

	s.turning = false
	s.turnRate = 0
	s.advance(t)

	before := s.launcher.State().Phase
	s.launcher.Tick(t, in.FlywheelRPM)
	if after := s.launcher.State().Phase; after != before {
		s.logf(chalk.Cyan, "launcher %s -> %s (%.0f rpm)", before, after, s.launcher.MeasuredRPM())
	}

	stage := s.seq.State().Stage
	s.seq.Tick(t)
	if next := s.seq.State().Stage; next != stage {
		s.logf(chalk.Blue, "burst shot %d %s -> %s", s.seq.State().Shot, stage, next)
	}
	if s.seq.Done() {
		s.finish()
	}

	indexer := s.indexer.Tick(t, in.IndexerDeg)
	// a shot committed this cycle already drives full power
	flywheel := s.launcher.Power()

	p := s.tune.Current()
	s.out = Actuators{
		T:             t,
		FlywheelPower: CompensatePower(p.Voltage, flywheel, in.BatteryVolts),
		IndexerPower:  indexer,
		FeedPosition:  s.feeder.Position(),
		TurnRate:      s.turnRate,
		Turning:       s.turning,
		IntakePower:   s.intake.Power(),
	}
	return s.out
}

func (s *Shooter) latch(fn func(t float64)) {
	s.pending = append(s.pending, fn)
}

func (s *Shooter) begin(t float64, mode ShotMode, side Alliance, shots int) {
	s.cancel(false)
	s.mode = mode
	s.side = side
	s.shots = shots
	s.phase = phaseCheck
	s.logf(chalk.Magenta, "%s request (%s, shots=%d)", mode, side, shots)
}

func (s *Shooter) cancel(stopLauncher bool) {
	if s.seq.Active() {
		s.seq.Abort()
	} else {
		s.seq.Reset()
	}
	if s.aligner.Active() {
		s.aligner.Abort()
		s.stopChassis()
	}
	if s.mode != ShotIdle {
		s.logf(chalk.Yellow, "%s cancelled", s.mode)
	}
	if stopLauncher {
		s.launcher.Stop()
	}
	s.mode = ShotIdle
	s.phase = phaseNone
}

func (s *Shooter) finish() {
	s.logf(chalk.Green, "%s complete (%d shots)", s.mode, s.seq.ShotsFired())
	s.seq.Reset()
	s.mode = ShotIdle
	s.phase = phaseNone
}

// advance moves a fire request through check → align → solve → firing.
// Several phases may pass in one cycle; firing is left to the sequencer.
func (s *Shooter) advance(t float64) {
	if s.phase == phaseCheck {
		s.phase = phaseSolve
		switch {
		case s.mode == ShotBurst:
			// bursts settle on the localization dwell instead
		case !s.rng.HasTarget():
			s.logf(chalk.Yellow, "no target, skipping realignment")
		case s.chassis == nil:
		case s.mode == ShotSingle && !s.aligner.NeedsRealign(s.rng.RobotPose()):
			// has not moved since the last shot
		default:
			s.aligner.Begin(t)
			s.phase = phaseAligning
		}
	}

	if s.phase == phaseAligning {
		offset, visible := s.rng.TargetOffset()
		turn, status := s.aligner.Step(t, offset, visible && s.rng.HasTarget())
		if status == AlignTurning {
			s.chassis.SetTurnRate(turn)
			s.turning = true
			s.turnRate = turn
			return
		}
		s.stopChassis()
		if status != AlignAligned {
			s.logf(chalk.Yellow, "realignment abandoned: %s", status)
		}
		s.phase = phaseSolve
	}

	if s.phase == phaseSolve {
		s.solve()
		if s.mode == ShotSingle {
			s.aligner.RecordShotPose(s.rng.RobotPose())
		}
		s.seq.Start(t, s.plan())
		s.phase = phaseFiring
	}
}

func (s *Shooter) solve() {
	p := s.tune.Current()
	if !s.rng.HasTarget() {
		s.launcher.LockToRPM(p.Launcher.DefaultRPM)
		rpm, _ := s.launcher.LockedRPM()
		s.outcome = SolveOutcome{RPM: rpm, Fallback: true}
		s.logf(chalk.Yellow, "no target, default %.0f rpm", rpm)
		return
	}
	distance, ok := s.rng.RangeToGoal(s.side)
	if !ok {
		s.launcher.LockToRPM(p.Launcher.DefaultRPM)
		rpm, _ := s.launcher.LockedRPM()
		s.outcome = SolveOutcome{RPM: rpm, Fallback: true}
		s.logf(chalk.Yellow, "no range, default %.0f rpm", rpm)
		return
	}
	shot, err := s.launcher.LockToDistance(distance)
	rpm, _ := s.launcher.LockedRPM()
	s.outcome = SolveOutcome{Distance: distance, HasDistance: true, RPM: rpm, Fallback: err != nil, Err: err}
	if err != nil {
		s.logf(chalk.Yellow, "%.2fm: %v, default %.0f rpm", distance, err, rpm)
		return
	}
	s.logf(chalk.Green, "%.2fm -> %.0f rpm (%.2f m/s)", distance, shot.TargetRPM, shot.RequiredVelocity)
}

func (s *Shooter) plan() BurstPlan {
	switch s.mode {
	case ShotSingle:
		return BurstPlan{Shots: 1, RotateAfterLast: true, Gate: GateAtSpeed}
	case ShotContinuous:
		return BurstPlan{Shots: 0, Gate: GateRecovery}
	default:
		return BurstPlan{Shots: s.shots, Localize: true, Gate: GateAtSpeed}
	}
}

func (s *Shooter) stopChassis() {
	if s.chassis != nil {
		s.chassis.SetDrivePower(0, 0, 0)
	}
}

func (s *Shooter) logf(color chalk.Color, format string, args ...any) {
	s.log.Print(color.Color(fmt.Sprintf(format, args...)))
}
