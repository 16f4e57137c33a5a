package launch_ctl

import "math"

// AccelerationRate is the flywheel's stall-torque-limited acceleration in
// RPM/s: (τ_stall / I) converted to RPM and scaled by the gear ratio.
func AccelerationRate(p *TuningParameters) float64 {
	inertia := p.Launch.MomentOfInertia()
	if inertia <= 0 {
		return 0
	}
	return radPerSecToRPM(p.Motor.StallTorque/inertia) * p.Motor.GearRatio
}

// RPMAfterShot estimates the wheel speed right after a ball leaves contact.
//
// Rotational energy 0.5·I·ω² loses the ball's 0.5·m·v², floored at zero.
func RPMAfterShot(p *TuningParameters, rpm float64) float64 {
	if rpm <= 0 {
		return 0
	}
	inertia := p.Launch.MomentOfInertia()
	omega := rpmToRadPerSec(rpm)
	rotational := 0.5 * inertia * omega * omega

	vBall := RPMToVelocity(p.Launch, rpm)
	ball := 0.5 * p.Launch.BallMass * vBall * vBall

	residual := math.Max(0, rotational-ball)
	return radPerSecToRPM(math.Sqrt(2 * residual / inertia))
}

// ReaccelerationTime is how long the motor needs to bring the wheel from
// current back up to target, with the safety factor and minimum floor
// applied. It is zero when no acceleration is needed.
func ReaccelerationTime(p *TuningParameters, target, current float64) float64 {
	if target <= current {
		return 0
	}
	lc := p.Launcher
	rate := AccelerationRate(p)
	if rate <= 0 {
		return math.Inf(1)
	}
	t := (target - current) / rate * lc.RecoverySafetyFactor
	return math.Max(t, lc.MinRecoveryTime)
}

// PredictRecoveryTime is the minimum spacing between shots at targetRPM.
func PredictRecoveryTime(p *TuningParameters, targetRPM float64) float64 {
	return ReaccelerationTime(p, targetRPM, RPMAfterShot(p, targetRPM))
}

// SpinupTime estimates the time to reach target from a standing speed.
func SpinupTime(p *TuningParameters, current, target float64) float64 {
	return ReaccelerationTime(p, target, current)
}

// BallContactTime is how long the ball rides the contact arc at rpm.
func BallContactTime(p *TuningParameters, rpm float64) float64 {
	omega := rpmToRadPerSec(rpm)
	if omega <= 0 {
		return math.Inf(1)
	}
	return p.Launch.ContactArcDeg * math.Pi / 180.0 / omega
}
