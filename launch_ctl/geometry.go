package launch_ctl

import "math"

// GoalGeometry describes the fixed goal aperture on the field.
type GoalGeometry struct {
	RimHeight    float64 `json:"rim_height_m" yaml:"rim_height_m"`
	OpeningWidth float64 `json:"opening_width_m" yaml:"opening_width_m"`
	OpeningDepth float64 `json:"opening_depth_m" yaml:"opening_depth_m"`
	Blue         Point   `json:"blue" yaml:"blue"`
	Red          Point   `json:"red" yaml:"red"`
}

// Center returns the goal center for the given alliance.
func (g GoalGeometry) Center(side Alliance) Point {
	if side == AllianceRed {
		return g.Red
	}
	return g.Blue
}

// LaunchGeometry describes the launcher mechanism and the projectile.
type LaunchGeometry struct {
	LaunchHeight        float64 `json:"launch_height_m" yaml:"launch_height_m"`
	LaunchAngle         float64 `json:"launch_angle_rad" yaml:"launch_angle_rad"`
	FlywheelRadius      float64 `json:"flywheel_radius_m" yaml:"flywheel_radius_m"`
	FlywheelInnerRadius float64 `json:"flywheel_inner_radius_m" yaml:"flywheel_inner_radius_m"`
	FlywheelMass        float64 `json:"flywheel_mass_kg" yaml:"flywheel_mass_kg"`
	BallMass            float64 `json:"ball_mass_kg" yaml:"ball_mass_kg"`
	ContactArcDeg       float64 `json:"contact_arc_deg" yaml:"contact_arc_deg"`
	Efficiency          float64 `json:"efficiency" yaml:"efficiency"`
}

// MomentOfInertia treats the flywheel as a hollow cylinder:
// I = 0.5 * m * (r_outer² + r_inner²).
func (l LaunchGeometry) MomentOfInertia() float64 {
	r := l.FlywheelRadius
	ri := l.FlywheelInnerRadius
	return 0.5 * l.FlywheelMass * (r*r + ri*ri)
}

// MotorConfig describes the flywheel drive motor.
type MotorConfig struct {
	StallTorque float64 `json:"stall_torque_nm" yaml:"stall_torque_nm"`
	GearRatio   float64 `json:"gear_ratio" yaml:"gear_ratio"`
	TicksPerRev float64 `json:"ticks_per_rev" yaml:"ticks_per_rev"`
}

// TicksToRPM converts an encoder velocity in ticks/s into wheel RPM.
func (m MotorConfig) TicksToRPM(ticksPerSecond float64) float64 {
	if m.TicksPerRev <= 0 {
		return 0
	}
	return ticksPerSecond / m.TicksPerRev * 60.0
}

// ShotLimits bounds the solver's feasible region.
type ShotLimits struct {
	MinShotDistance float64 `json:"min_shot_distance_m" yaml:"min_shot_distance_m"`
	MaxShotDistance float64 `json:"max_shot_distance_m" yaml:"max_shot_distance_m"`
	MinStableRPM    float64 `json:"min_stable_rpm" yaml:"min_stable_rpm"`
	MaxFlywheelRPM  float64 `json:"max_flywheel_rpm" yaml:"max_flywheel_rpm"`
}

// Distance2D is the planar Euclidean distance between two points.
func Distance2D(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// rpmToRadPerSec converts revolutions per minute into rad/s.
func rpmToRadPerSec(rpm float64) float64 {
	return rpm * 2.0 * math.Pi / 60.0
}

// radPerSecToRPM converts rad/s into revolutions per minute.
func radPerSecToRPM(omega float64) float64 {
	return omega * 60.0 / (2.0 * math.Pi)
}

// normalizeDeg wraps an angle into [0, 360).
func normalizeDeg(angle float64) float64 {
	n := math.Mod(angle, 360.0)
	if n < 0 {
		n += 360.0
	}
	if n >= 360.0 {
		n = 0
	}
	return n
}

// shortestDeltaDeg returns the signed shortest rotation from current to
// target, in (-180, 180].
func shortestDeltaDeg(target, current float64) float64 {
	diff := math.Mod(target-current, 360.0)
	if diff > 180 {
		diff -= 360
	} else if diff <= -180 {
		diff += 360
	}
	return diff
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
