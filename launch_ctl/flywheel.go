package launch_ctl

import (
	"fmt"
	"math"
)

// LauncherPhase tags the active flywheel controller state.
type LauncherPhase int

const (
	LauncherOff LauncherPhase = iota + 1
	LauncherSpinningUp
	LauncherReady
	LauncherFiring
	LauncherManual
)

func (p LauncherPhase) String() string {
	switch p {
	case LauncherOff:
		return "OFF"
	case LauncherSpinningUp:
		return "SPINNING_UP"
	case LauncherReady:
		return "READY"
	case LauncherFiring:
		return "FIRING"
	case LauncherManual:
		return "MANUAL_POWER"
	default:
		return fmt.Sprintf("LauncherPhase(%d)", int(p))
	}
}

// LauncherState is the flywheel state variant.
//
// TargetRPM is set only for SpinningUp and Ready, Power only for Manual.
type LauncherState struct {
	Phase     LauncherPhase
	TargetRPM float64
	Power     float64
}

// Launcher is the flywheel velocity controller. It is the only writer of
// the flywheel actuator; everything else asks it for transitions.
type Launcher struct {
	tune  TuningSource
	state LauncherState

	measured  float64
	power     float64
	fireStart float64

	locked         bool
	lockedRPM      float64
	hasDistance    bool
	lockedDistance float64
}

// NewLauncher constructs a launcher in the Off state.
func NewLauncher(tune TuningSource) *Launcher {
	return &Launcher{tune: tune, state: LauncherState{Phase: LauncherOff}}
}

// State returns the current state variant.
func (l *Launcher) State() LauncherState { return l.state }

// MeasuredRPM is the sanitized measurement from the latest tick.
func (l *Launcher) MeasuredRPM() float64 { return l.measured }

// Power is the output computed by the latest tick.
func (l *Launcher) Power() float64 { return l.power }

// LockedRPM reports the setpoint the launcher recovers to after a shot.
func (l *Launcher) LockedRPM() (float64, bool) { return l.lockedRPM, l.locked }

// LockedDistance reports the distance the current lock was solved for.
func (l *Launcher) LockedDistance() (float64, bool) { return l.lockedDistance, l.hasDistance }

// TargetRPM returns the active setpoint, or zero outside SpinningUp/Ready.
func (l *Launcher) TargetRPM() float64 {
	switch l.state.Phase {
	case LauncherSpinningUp, LauncherReady:
		return l.state.TargetRPM
	default:
		return 0
	}
}

// Command starts spinning toward rpm. Non-positive or invalid setpoints
// turn the launcher off.
func (l *Launcher) Command(rpm float64) {
	if !finite(rpm) || rpm <= 0 {
		l.state = LauncherState{Phase: LauncherOff}
		return
	}
	rpm = math.Min(rpm, l.tune.Current().Limits.MaxFlywheelRPM)
	l.state = LauncherState{Phase: LauncherSpinningUp, TargetRPM: rpm}
}

// CommandManual drives the flywheel at a fixed power in [0, 1],
// bypassing RPM logic. The wheel only drives forward.
func (l *Launcher) CommandManual(power float64) {
	if !finite(power) {
		power = 0
	}
	l.state = LauncherState{Phase: LauncherManual, Power: clamp(power, 0, 1)}
}

// Stop turns the flywheel off and clears any lock.
func (l *Launcher) Stop() {
	l.locked = false
	l.lockedRPM = 0
	l.hasDistance = false
	l.lockedDistance = 0
	l.state = LauncherState{Phase: LauncherOff}
}

// LockToRPM makes rpm the recovery setpoint and spins up to it.
func (l *Launcher) LockToRPM(rpm float64) {
	l.hasDistance = false
	l.lockedDistance = 0
	l.Command(rpm)
	if l.state.Phase == LauncherSpinningUp {
		l.locked = true
		l.lockedRPM = l.state.TargetRPM
		return
	}
	l.locked = false
	l.lockedRPM = 0
}

// LockToDistance solves for distance and locks the resulting RPM. An
// infeasible distance locks the default RPM instead; the solver error is
// returned for reporting only.
func (l *Launcher) LockToDistance(distance float64) (ShotParameters, error) {
	p := l.tune.Current()
	shot, err := Solve(p, distance)
	rpm := shot.TargetRPM
	if err != nil {
		rpm = p.Launcher.DefaultRPM
	}
	l.LockToRPM(rpm)
	if finite(distance) {
		l.hasDistance = true
		l.lockedDistance = distance
	}
	return shot, err
}

// Fire applies full drive for the launch dwell, starting at time t.
func (l *Launcher) Fire(t float64) {
	l.fireStart = t
	l.state = LauncherState{Phase: LauncherFiring}
	l.power = 1
}

// AtSpeed reports whether the latest measurement is within the
// configured tolerance of the active setpoint.
func (l *Launcher) AtSpeed() bool {
	return l.AtSpeedWithin(l.tune.Current().Launcher.Tolerance)
}

// AtSpeedWithin is AtSpeed with an explicit fractional tolerance.
func (l *Launcher) AtSpeedWithin(tolerance float64) bool {
	switch l.state.Phase {
	case LauncherSpinningUp, LauncherReady:
		return withinTolerance(l.state.TargetRPM, l.measured, tolerance)
	default:
		return false
	}
}

// PredictRecoveryTime forwards to the energy-balance model using the
// current tuning.
func (l *Launcher) PredictRecoveryTime(rpm float64) float64 {
	return PredictRecoveryTime(l.tune.Current(), rpm)
}

// Tick ingests the measured wheel speed at time t and returns the motor
// power to apply.
func (l *Launcher) Tick(t, measuredRPM float64) float64 {
	p := l.tune.Current()
	l.measured = sanitizeRPM(measuredRPM, p.Limits.MaxFlywheelRPM)

	if l.state.Phase == LauncherFiring && t-l.fireStart >= p.Launcher.LaunchDwell {
		if l.locked {
			l.state = LauncherState{Phase: LauncherSpinningUp, TargetRPM: l.lockedRPM}
		} else {
			l.state = LauncherState{Phase: LauncherOff}
		}
	}

	switch l.state.Phase {
	case LauncherOff:
		l.power = 0
	case LauncherSpinningUp:
		l.power = proportionalPower(p.Launcher.KP, l.state.TargetRPM, l.measured)
		if withinTolerance(l.state.TargetRPM, l.measured, p.Launcher.Tolerance) {
			l.state = LauncherState{Phase: LauncherReady, TargetRPM: l.state.TargetRPM}
		}
	case LauncherReady:
		l.power = proportionalPower(p.Launcher.KP, l.state.TargetRPM, l.measured)
	case LauncherFiring:
		l.power = 1
	case LauncherManual:
		l.power = l.state.Power
	default:
		l.state = LauncherState{Phase: LauncherOff}
		l.power = 0
	}
	return l.power
}

// proportionalPower is the forward-only P law; braking is left to coast.
func proportionalPower(kp, target, measured float64) float64 {
	return clamp(kp*(target-measured), 0, 1)
}

func withinTolerance(target, measured, tolerance float64) bool {
	return math.Abs(target-measured)/math.Max(target, 1) < tolerance
}

// sanitizeRPM maps clearly invalid readings to zero.
func sanitizeRPM(rpm, maxRPM float64) float64 {
	if !finite(rpm) || rpm < 0 || rpm > 2*maxRPM {
		return 0
	}
	return rpm
}
