package launch_ctl

import (
	"bytes"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRange struct {
	target   bool
	distance float64
	ranged   bool
	pose     Pose2D
	poseOK   bool
	offset   float64
}

func (f *fakeRange) RangeToGoal(Alliance) (float64, bool) { return f.distance, f.ranged }
func (f *fakeRange) HasTarget() bool                      { return f.target }
func (f *fakeRange) RobotPose() (Pose2D, bool)            { return f.pose, f.poseOK }
func (f *fakeRange) TargetOffset() (float64, bool)        { return f.offset, f.target }

type fakeChassis struct {
	turns  []float64
	drives int
}

func (c *fakeChassis) SetTurnRate(value float64)                 { c.turns = append(c.turns, value) }
func (c *fakeChassis) SetDrivePower(axial, lateral, yaw float64) { c.drives++ }

// runLocked ticks the shooter against a plant that holds the locked
// setpoint exactly, until done reports true or the deadline passes.
func runLocked(s *Shooter, from, until float64, done func() bool) float64 {
	const dt = 0.02
	t := from
	for t < until {
		t += dt
		rpm, _ := s.Launcher().LockedRPM()
		s.Tick(Sensors{T: t, FlywheelRPM: rpm, BatteryVolts: 12})
		if done != nil && done() {
			break
		}
	}
	return t
}

func TestShooterNoTargetUsesDefaultRPM(t *testing.T) {
	chassis := &fakeChassis{}
	s := NewShooter(tuningWith(nil), &fakeRange{}, chassis, nil)

	s.RequestSingleShot(AllianceBlue)
	assert.Equal(t, ShotIdle, s.Mode(), "requests apply on the next tick")

	s.Tick(Sensors{T: 0, BatteryVolts: 12})

	assert.Equal(t, ShotSingle, s.Mode())
	assert.Equal(t, LauncherState{Phase: LauncherSpinningUp, TargetRPM: 3500}, s.Launcher().State())
	assert.True(t, s.LastSolve().Fallback)
	assert.False(t, s.LastSolve().HasDistance)
	assert.Equal(t, "NO_TARGET", s.LastSolve().String())
	assert.Empty(t, chassis.turns)
	assert.Zero(t, chassis.drives)
	assert.Equal(t, BurstFeed, s.Sequencer().State().Stage)
}

func TestShooterSingleShotCompletes(t *testing.T) {
	rng := &fakeRange{target: true, distance: 1.8, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)

	s.RequestSingleShot(AllianceRed)
	runLocked(s, 0, 5, func() bool { return s.Mode() == ShotIdle })

	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, 1, s.Sequencer().ShotsFired())
	assert.Equal(t, 1, s.Indexer().Rotations())
	assert.Equal(t, 1, s.Feeder().Feeds())
	assert.False(t, s.Feeder().Feeding())

	rpm, locked := s.Launcher().LockedRPM()
	assert.True(t, locked, "launcher keeps the setpoint after the shot")
	assert.InDelta(t, 2993.6, rpm, 0.5)
	assert.Equal(t, "SOLVED", s.LastSolve().String())
}

func TestShooterSkipsRealignWhenStationary(t *testing.T) {
	rng := &fakeRange{target: true, distance: 1.8, ranged: true, poseOK: true, offset: 10}
	chassis := &fakeChassis{}
	s := NewShooter(tuningWith(nil), rng, chassis, nil)

	s.RequestSingleShot(AllianceBlue)
	s.Tick(Sensors{T: 0})
	assert.NotEmpty(t, chassis.turns, "first shot realigns")
	out := s.Tick(Sensors{T: 0.02})
	assert.True(t, out.Turning)
	assert.Less(t, out.TurnRate, 0.0)

	// target centred: alignment finishes and the shot proceeds
	rng.offset = 0
	runLocked(s, 0.02, 5, func() bool { return s.Mode() == ShotIdle })
	require.Equal(t, 1, s.Sequencer().ShotsFired())
	assert.Positive(t, chassis.drives)

	turns := len(chassis.turns)
	rng.offset = 10
	s.RequestSingleShot(AllianceBlue)
	s.Tick(Sensors{T: 6})
	assert.Len(t, chassis.turns, turns, "robot has not moved since the last shot")
	assert.Equal(t, BurstFeed, s.Sequencer().State().Stage)
}

func TestShooterContinuousFireUntilCancelled(t *testing.T) {
	rng := &fakeRange{target: true, distance: 2.0, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)

	s.RequestContinuousFire(AllianceBlue)
	now := runLocked(s, 0, 6, nil)

	assert.Equal(t, ShotContinuous, s.Mode())
	assert.GreaterOrEqual(t, s.Sequencer().ShotsFired(), 3)

	s.CancelFire()
	s.Tick(Sensors{T: now + 0.02})
	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, LauncherOff, s.Launcher().State().Phase)
	assert.Equal(t, BurstIdle, s.Sequencer().State().Stage)
}

func TestShooterBurst(t *testing.T) {
	chassis := &fakeChassis{}
	rng := &fakeRange{target: true, distance: 1.5, ranged: true, poseOK: true, offset: 10}
	s := NewShooter(tuningWith(nil), rng, chassis, nil)

	s.RequestBurst(AllianceRed, 0)
	s.Tick(Sensors{T: 0})
	assert.Equal(t, BurstLocalize, s.Sequencer().State().Stage)
	assert.Equal(t, 3, s.Sequencer().Plan().Shots)

	runLocked(s, 0, 10, func() bool { return s.Mode() == ShotIdle })
	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, 3, s.Sequencer().ShotsFired())
	assert.Equal(t, 2, s.Indexer().Rotations())
	assert.Empty(t, chassis.turns, "bursts do not realign")
}

func TestShooterManualOverrideAbortsFire(t *testing.T) {
	rng := &fakeRange{target: true, distance: 2.0, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)

	s.RequestContinuousFire(AllianceBlue)
	now := runLocked(s, 0, 0.5, nil)
	require.True(t, s.Sequencer().Active())

	s.SetIndexerManualPower(0.3)
	out := s.Tick(Sensors{T: now + 0.02})
	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, IndexerManual, s.Indexer().State().Phase)
	assert.Equal(t, 0.3, out.IndexerPower)
	assert.False(t, s.Feeder().Feeding())
	_, locked := s.Launcher().LockedRPM()
	assert.True(t, locked, "indexer override keeps the flywheel lock")
}

func TestShooterDirectOverrides(t *testing.T) {
	s := NewShooter(tuningWith(nil), &fakeRange{}, nil, nil)

	s.LockToDistance(5.0)
	s.Tick(Sensors{T: 0, IndexerDeg: 90})
	assert.ErrorIs(t, s.LastSolve().Err, ErrOutOfRange)
	assert.Equal(t, 3500.0, s.Launcher().TargetRPM())

	s.LockToRPM(2800)
	s.Tick(Sensors{T: 0.02, IndexerDeg: 90})
	assert.Equal(t, 2800.0, s.Launcher().TargetRPM())

	s.RotateIndexerLeft()
	s.Tick(Sensors{T: 0.04, IndexerDeg: 90})
	assert.InDelta(t, 30, s.Indexer().State().TargetDeg, 1e-9)

	s.RotateIndexerRight()
	s.Tick(Sensors{T: 0.06, IndexerDeg: 90})
	assert.InDelta(t, 150, s.Indexer().State().TargetDeg, 1e-9)

	s.SetLauncherManualPower(0.25)
	out := s.Tick(Sensors{T: 0.08, BatteryVolts: 12})
	assert.InDelta(t, 0.25, out.FlywheelPower, 1e-9)

	s.StopLauncher()
	out = s.Tick(Sensors{T: 0.1})
	assert.Equal(t, 0.0, out.FlywheelPower)
	assert.Equal(t, LauncherOff, s.Launcher().State().Phase)
}

func TestShooterStop(t *testing.T) {
	rng := &fakeRange{target: true, distance: 2.0, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)
	s.RequestBurst(AllianceBlue, 2)
	now := runLocked(s, 0, 1.5, nil)

	s.Stop()
	out := s.Tick(Sensors{T: now + 0.02})
	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, LauncherOff, s.Launcher().State().Phase)
	assert.True(t, s.Indexer().Idle())
	assert.Equal(t, 0.0, out.FlywheelPower)
	assert.Equal(t, 0.0, out.IndexerPower)
	assert.InDelta(t, 0.2639, out.FeedPosition, 1e-9)
}

func TestShooterVoltageCompensation(t *testing.T) {
	s := NewShooter(tuningWith(nil), &fakeRange{}, nil, nil)
	s.LockToRPM(3000)
	out := s.Tick(Sensors{T: 0, FlywheelRPM: 0, BatteryVolts: 10})
	assert.InDelta(t, 0.72, out.FlywheelPower, 1e-9)

	out = s.Tick(Sensors{T: 0.02, FlywheelRPM: 0, BatteryVolts: 6})
	assert.InDelta(t, 0.84, out.FlywheelPower, 1e-9, "multiplier is capped")
}

func TestShooterLogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	rng := &fakeRange{target: true, distance: 1.8, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, log.New(&buf, "", 0))

	s.RequestSingleShot(AllianceBlue)
	runLocked(s, 0, 5, func() bool { return s.Mode() == ShotIdle })

	out := buf.String()
	assert.Contains(t, out, "SINGLE request")
	assert.Contains(t, out, "SPINNING_UP -> READY")
	assert.Contains(t, out, "SINGLE complete (1 shots)")
}

func TestShooterAgainstSimulatedRobot(t *testing.T) {
	tune := tuningWith(nil)
	cfg := DefaultAppConfig().Sim
	cfg.OffsetDeg = 12
	sim := NewSimRobot(cfg, tune)
	s := NewShooter(tune, NewPoseRangeProvider(tune, sim), sim, nil)

	s.RequestSingleShot(AllianceBlue)
	turned := false
	const dt = 0.02
	for i := 1; i <= 750 && sim.Launched() == 0; i++ {
		out := s.Tick(sim.Sensors(float64(i) * dt))
		turned = turned || out.Turning
		sim.Apply(out)
	}

	assert.True(t, turned)
	off, _ := sim.Offset()
	assert.Less(t, math.Abs(off), 2.0)
	assert.Equal(t, 1, sim.Launched())
	assert.InDelta(t, 1.8576, s.LastSolve().Distance, 1e-3)
}

func TestShooterCommitTickDrivesFullPower(t *testing.T) {
	rng := &fakeRange{target: true, distance: 1.8, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)

	s.RequestSingleShot(AllianceRed)
	runLocked(s, 0, 5, func() bool { return s.Sequencer().ShotsFired() == 1 })

	require.Equal(t, 1, s.Sequencer().ShotsFired())
	tm := s.Snapshot()
	assert.Equal(t, "FIRING", tm.Launcher)
	assert.Equal(t, 1.0, tm.FlywheelPower)
}

func TestShooterIntakeRunsAlongsideFire(t *testing.T) {
	rng := &fakeRange{target: true, distance: 1.8, ranged: true, poseOK: true}
	s := NewShooter(tuningWith(nil), rng, nil, nil)

	s.RequestContinuousFire(AllianceBlue)
	s.CollectIntake()
	out := s.Tick(Sensors{T: 0, BatteryVolts: 12})
	assert.Equal(t, ShotContinuous, s.Mode())
	assert.InDelta(t, 0.9, out.IntakePower, 1e-12)
	assert.Equal(t, "COLLECTING", s.Snapshot().Intake)

	s.EjectIntake()
	out = s.Tick(Sensors{T: 0.02, BatteryVolts: 12})
	assert.Equal(t, ShotContinuous, s.Mode())
	assert.InDelta(t, -0.9, out.IntakePower, 1e-12)

	s.Stop()
	out = s.Tick(Sensors{T: 0.04, BatteryVolts: 12})
	assert.Equal(t, ShotIdle, s.Mode())
	assert.Equal(t, IntakeIdle, s.Intake().State())
	assert.Zero(t, out.IntakePower)
}
