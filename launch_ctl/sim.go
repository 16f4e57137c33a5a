package launch_ctl

import "math"

// SimRobot stands in for the real mechanism. The flywheel accelerates at
// power times the stall-torque rate and coasts down with time constant
// CoastTime.
// It implements PoseSource and Chassis so a Shooter can run against it.
type SimRobot struct {
	cfg  SimConfig
	tune TuningSource

	rpm      float64
	angle    float64
	pose     Pose2D
	offset   float64
	turnRate float64

	lastT    float64
	started  bool
	wasFeed  bool
	launched int
}

// NewSimRobot places a simulated robot at the configured pose.
func NewSimRobot(cfg SimConfig, tune TuningSource) *SimRobot {
	return &SimRobot{
		cfg:    cfg,
		tune:   tune,
		pose:   Pose2D{X: cfg.X, Y: cfg.Y},
		offset: cfg.OffsetDeg,
	}
}

// Sensors reads the simulated plant at time t.
func (r *SimRobot) Sensors(t float64) Sensors {
	return Sensors{T: t, FlywheelRPM: r.rpm, IndexerDeg: r.angle, BatteryVolts: r.cfg.BatteryVolts}
}

// Launched counts balls that left the simulated flywheel.
func (r *SimRobot) Launched() int { return r.launched }

// RPM is the simulated wheel speed.
func (r *SimRobot) RPM() float64 { return r.rpm }

// Apply integrates the plant forward to out.T under the given commands.
func (r *SimRobot) Apply(out Actuators) {
	if !r.started {
		r.started = true
		r.lastT = out.T
		return
	}
	dt := out.T - r.lastT
	r.lastT = out.T
	if dt <= 0 {
		return
	}

	p := r.tune.Current()
	coast := math.Max(r.cfg.CoastTime, 1e-3)
	power := clamp(out.FlywheelPower, -1, 1)
	r.rpm += (power*AccelerationRate(p) - r.rpm/coast) * dt
	r.rpm = math.Max(0, r.rpm)

	feeding := out.FeedPosition == clamp(p.Feed.FeedPosition, 0, 1)
	if r.wasFeed && !feeding {
		r.rpm = RPMAfterShot(p, r.rpm)
		r.launched++
	}
	r.wasFeed = feeding

	r.angle = normalizeDeg(r.angle + clamp(out.IndexerPower, -1, 1)*r.cfg.IndexerDegPerSec*dt)
	r.offset += r.turnRate * r.cfg.TurnDegPerSec * dt
	r.pose.Heading += r.turnRate * r.cfg.TurnDegPerSec * dt * math.Pi / 180.0
}

// Pose is the fixed simulated field pose.
func (r *SimRobot) Pose() (Pose2D, bool) {
	return r.pose, r.cfg.HasTarget
}

// Offset is the simulated tag offset, which follows commanded turns.
func (r *SimRobot) Offset() (float64, bool) {
	return r.offset, r.cfg.HasTarget
}

// SetTurnRate sets the simulated yaw command.
func (r *SimRobot) SetTurnRate(value float64) {
	r.turnRate = clamp(value, -1, 1)
}

// SetDrivePower keeps only the yaw component.
func (r *SimRobot) SetDrivePower(axial, lateral, yaw float64) {
	r.turnRate = clamp(yaw, -1, 1)
}
