package launch_ctl

import (
	"fmt"
	"math"
)

// Gravity is standard gravitational acceleration in m/s².
const Gravity = 9.81

// Infeasible explains why no shot exists for a distance.
type Infeasible int

const (
	// ErrOutOfRange: distance is not finite or outside the open
	// interval (MinShotDistance, MaxShotDistance).
	ErrOutOfRange Infeasible = iota + 1
	// ErrNoTrajectory: the launch angle cannot lift the ball to the rim
	// at this distance.
	ErrNoTrajectory
	// ErrOutOfControlRange: the wheel speed needed is outside
	// [MinStableRPM, MaxFlywheelRPM].
	ErrOutOfControlRange
)

func (e Infeasible) Error() string {
	switch e {
	case ErrOutOfRange:
		return "infeasible: distance out of range"
	case ErrNoTrajectory:
		return "infeasible: no trajectory at this launch angle"
	case ErrOutOfControlRange:
		return "infeasible: required rpm outside control range"
	default:
		return fmt.Sprintf("infeasible(%d)", int(e))
	}
}

// ShotParameters is a solved, fully valid shot.
type ShotParameters struct {
	Distance         float64 `json:"distance_m"`
	RequiredVelocity float64 `json:"required_velocity_mps"`
	TargetRPM        float64 `json:"target_rpm"`
}

// RequiredVelocity returns the launch speed that puts the ball on the goal
// rim at horizontal distance x:
//
//	v = sqrt( g·x² / (2·cos²θ·(x·tanθ − y)) ),  y = rim − launch height
//
// ErrNoTrajectory is returned when x·tanθ − y ≤ 0.
func RequiredVelocity(l LaunchGeometry, g GoalGeometry, x float64) (float64, error) {
	y := g.RimHeight - l.LaunchHeight
	theta := l.LaunchAngle
	denom := x*math.Tan(theta) - y
	cos := math.Cos(theta)
	if denom <= 0 || cos <= 0 {
		return 0, ErrNoTrajectory
	}
	v := math.Sqrt(Gravity * x * x / (2 * cos * cos * denom))
	if !finite(v) || v <= 0 {
		return 0, ErrNoTrajectory
	}
	return v, nil
}

// TimeOfFlight is the horizontal travel time for a launch at speed v.
func TimeOfFlight(l LaunchGeometry, x, v float64) float64 {
	vx := v * math.Cos(l.LaunchAngle)
	if vx <= 0 {
		return math.Inf(1)
	}
	return x / vx
}

// HeightAt returns the ball height above the floor after travelling x
// meters horizontally from a launch at speed v.
func HeightAt(l LaunchGeometry, x, v float64) float64 {
	cos := math.Cos(l.LaunchAngle)
	return l.LaunchHeight + x*math.Tan(l.LaunchAngle) - Gravity*x*x/(2*v*v*cos*cos)
}

// VelocityToRPM converts a ball speed into the flywheel speed that
// produces it: ω = v / (r·efficiency).
func VelocityToRPM(l LaunchGeometry, v float64) float64 {
	omega := v / (l.FlywheelRadius * l.Efficiency)
	return radPerSecToRPM(omega)
}

// RPMToVelocity converts a flywheel speed into the expected ball speed.
func RPMToVelocity(l LaunchGeometry, rpm float64) float64 {
	return rpmToRadPerSec(rpm) * l.FlywheelRadius * l.Efficiency
}

// Solve maps a distance to goal into shot parameters.
//
// The returned error is always an Infeasible value; callers fall back to
// the default RPM on any error.
func Solve(p *TuningParameters, distance float64) (ShotParameters, error) {
	lim := p.Limits
	if !finite(distance) || distance <= lim.MinShotDistance || distance >= lim.MaxShotDistance {
		return ShotParameters{}, ErrOutOfRange
	}

	v, err := RequiredVelocity(p.Launch, p.Goal, distance)
	if err != nil {
		return ShotParameters{}, err
	}
	if tof := TimeOfFlight(p.Launch, distance, v); !finite(tof) || tof <= 0 {
		return ShotParameters{}, ErrNoTrajectory
	}

	rpm := VelocityToRPM(p.Launch, v)
	if !finite(rpm) || rpm < lim.MinStableRPM || rpm > lim.MaxFlywheelRPM {
		return ShotParameters{}, ErrOutOfControlRange
	}

	return ShotParameters{Distance: distance, RequiredVelocity: v, TargetRPM: rpm}, nil
}
