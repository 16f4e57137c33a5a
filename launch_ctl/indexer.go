package launch_ctl

import (
	"fmt"
	"math"
)

// IndexerPhase tags the magazine controller state.
type IndexerPhase int

const (
	IndexerIdle IndexerPhase = iota + 1
	IndexerMoving
	IndexerManual
)

func (p IndexerPhase) String() string {
	switch p {
	case IndexerIdle:
		return "IDLE"
	case IndexerMoving:
		return "MOVING_TO_SLOT"
	case IndexerManual:
		return "MANUAL_POWER"
	default:
		return fmt.Sprintf("IndexerPhase(%d)", int(p))
	}
}

// IndexerState is the magazine state variant.
type IndexerState struct {
	Phase     IndexerPhase
	TargetDeg float64
	Power     float64
}

// SlotRotator is one way of advancing the magazine by a single slot.
//
// Begin is called once per rotation with the current angle and returns
// the nominal target. Step is called every tick until it reports done;
// valid is false when the angle reading is unusable this tick.
type SlotRotator interface {
	Begin(t, currentDeg float64, direction int) float64
	Step(t, currentDeg float64, valid bool) (power float64, done bool)
}

// PIDRotator closes the loop on the absolute encoder angle.
type PIDRotator struct {
	tune TuningSource

	target     float64
	integral   float64
	prevError  float64
	derivative float64
	lastT      float64
}

// NewPIDRotator constructs an encoder-driven rotator.
func NewPIDRotator(tune TuningSource) *PIDRotator {
	return &PIDRotator{tune: tune}
}

// Begin targets one slot from currentDeg and resets the PID state.
func (r *PIDRotator) Begin(t, currentDeg float64, direction int) float64 {
	cfg := r.tune.Current().Indexer
	r.target = normalizeDeg(currentDeg + float64(direction)*cfg.SlotDegrees)
	r.integral = 0
	r.derivative = 0
	r.prevError = shortestDeltaDeg(r.target, currentDeg)
	r.lastT = t
	return r.target
}

// Step returns the PID power toward the target. An invalid angle yields
// zero power without finishing.
func (r *PIDRotator) Step(t, currentDeg float64, valid bool) (float64, bool) {
	if !valid {
		return 0, false
	}
	cfg := r.tune.Current().Indexer
	err := shortestDeltaDeg(r.target, currentDeg)
	if math.Abs(err) <= cfg.Tolerance {
		return 0, true
	}

	dt := t - r.lastT
	if dt <= 0 {
		dt = 1e-3
	}
	r.lastT = t

	r.integral = clamp(r.integral+err*dt, -cfg.MaxIntegral, cfg.MaxIntegral)
	raw := (err - r.prevError) / dt
	r.derivative = cfg.DerivativeFilter*raw + (1-cfg.DerivativeFilter)*r.derivative
	r.prevError = err

	power := cfg.KP*err + cfg.KI*r.integral + cfg.KD*r.derivative
	// Static friction: below MinPower the carrier does not move at all.
	if math.Abs(power) < cfg.MinPower && math.Abs(err) > cfg.Deadband {
		power = math.Copysign(cfg.MinPower, err)
	}
	return clamp(power, -cfg.MaxPower, cfg.MaxPower), false
}

// TimedRotator drives open loop at fixed power for one slot's share of
// the full rotation time.
type TimedRotator struct {
	tune TuningSource

	start     float64
	direction float64
}

// NewTimedRotator constructs the encoder-less fallback rotator.
func NewTimedRotator(tune TuningSource) *TimedRotator {
	return &TimedRotator{tune: tune}
}

// Begin starts the timed move and returns the nominal target angle.
func (r *TimedRotator) Begin(t, currentDeg float64, direction int) float64 {
	cfg := r.tune.Current().Indexer
	r.start = t
	r.direction = float64(direction)
	return normalizeDeg(currentDeg + r.direction*cfg.SlotDegrees)
}

// Step drives at the timed power until one slot's share of the full
// rotation time has passed.
func (r *TimedRotator) Step(t, _ float64, _ bool) (float64, bool) {
	cfg := r.tune.Current().Indexer
	if t-r.start >= cfg.FullRotationTime*cfg.SlotDegrees/360.0 {
		return 0, true
	}
	return clamp(r.direction*cfg.TimedPower, -1, 1), false
}

// Indexer owns the magazine actuator and its angle sensor.
type Indexer struct {
	tune  TuningSource
	pid   SlotRotator
	timed SlotRotator
	fixed SlotRotator

	active    SlotRotator
	state     IndexerState
	angle     float64
	angleOK   bool
	power     float64
	rotations int
}

// NewIndexer picks the rotation strategy from tuning on every rotate.
func NewIndexer(tune TuningSource) *Indexer {
	return &Indexer{
		tune:  tune,
		pid:   NewPIDRotator(tune),
		timed: NewTimedRotator(tune),
		state: IndexerState{Phase: IndexerIdle},
	}
}

// NewIndexerWithRotator always rotates with r.
func NewIndexerWithRotator(tune TuningSource, r SlotRotator) *Indexer {
	ix := NewIndexer(tune)
	ix.fixed = r
	return ix
}

// State returns the current state variant.
func (ix *Indexer) State() IndexerState { return ix.state }

// Angle is the last good absolute angle in [0, 360).
func (ix *Indexer) Angle() float64 { return ix.angle }

// Power is the output computed by the latest tick.
func (ix *Indexer) Power() float64 { return ix.power }

// Idle reports whether the magazine is at rest.
func (ix *Indexer) Idle() bool { return ix.state.Phase == IndexerIdle }

// Rotations counts slot rotations started since construction.
func (ix *Indexer) Rotations() int { return ix.rotations }

// Error is the signed shortest-path error to the target while moving.
func (ix *Indexer) Error() float64 {
	if ix.state.Phase != IndexerMoving {
		return 0
	}
	return shortestDeltaDeg(ix.state.TargetDeg, ix.angle)
}

// RotateRight advances one slot clockwise.
func (ix *Indexer) RotateRight(t float64) { ix.RotateBySlot(t, 1) }

// RotateLeft advances one slot counter-clockwise.
func (ix *Indexer) RotateLeft(t float64) { ix.RotateBySlot(t, -1) }

// RotateBySlot starts a one-slot rotation in the sign of direction.
func (ix *Indexer) RotateBySlot(t float64, direction int) {
	if direction == 0 {
		return
	}
	if direction > 0 {
		direction = 1
	} else {
		direction = -1
	}
	ix.active = ix.rotator()
	target := ix.active.Begin(t, ix.angle, direction)
	ix.state = IndexerState{Phase: IndexerMoving, TargetDeg: target}
	ix.rotations++
}

// SetManualPower drives the magazine directly.
func (ix *Indexer) SetManualPower(power float64) {
	if !finite(power) {
		power = 0
	}
	ix.active = nil
	ix.state = IndexerState{Phase: IndexerManual, Power: clamp(power, -1, 1)}
}

// Stop returns to Idle from any state.
func (ix *Indexer) Stop() {
	ix.active = nil
	ix.state = IndexerState{Phase: IndexerIdle}
}

// Tick ingests the absolute angle at time t and returns the actuator power.
func (ix *Indexer) Tick(t, angleDeg float64) float64 {
	ix.angleOK = finite(angleDeg)
	if ix.angleOK {
		ix.angle = normalizeDeg(angleDeg)
	}

	switch ix.state.Phase {
	case IndexerIdle:
		ix.power = 0
	case IndexerMoving:
		if ix.active == nil {
			ix.state = IndexerState{Phase: IndexerIdle}
			ix.power = 0
			break
		}
		power, done := ix.active.Step(t, ix.angle, ix.angleOK)
		if done {
			ix.active = nil
			ix.state = IndexerState{Phase: IndexerIdle}
			power = 0
		}
		ix.power = power
	case IndexerManual:
		ix.power = ix.state.Power
	default:
		ix.state = IndexerState{Phase: IndexerIdle}
		ix.power = 0
	}
	return ix.power
}

func (ix *Indexer) rotator() SlotRotator {
	if ix.fixed != nil {
		return ix.fixed
	}
	if ix.tune.Current().Indexer.Rotation == RotationTimed {
		return ix.timed
	}
	return ix.pid
}

// AngleFromVoltage converts an analog absolute encoder reading into
// degrees. maxVolts is the reading at a full turn.
func AngleFromVoltage(volts, maxVolts float64) float64 {
	if maxVolts <= 0 || !finite(volts) {
		return math.NaN()
	}
	return normalizeDeg(volts / maxVolts * 360.0)
}
