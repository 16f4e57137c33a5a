package launch_ctl

import (
	"fmt"
	"math"
)

// AlignStatus is the outcome of one alignment step.
type AlignStatus int

const (
	AlignTurning AlignStatus = iota + 1
	AlignAligned
	AlignNoTarget
	AlignTimedOut
)

func (s AlignStatus) String() string {
	switch s {
	case AlignTurning:
		return "TURNING"
	case AlignAligned:
		return "ALIGNED"
	case AlignNoTarget:
		return "NO_TARGET"
	case AlignTimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("AlignStatus(%d)", int(s))
	}
}

// Aligner is the heading PD loop run before single shots.
type Aligner struct {
	tune TuningSource

	shotPose    Pose2D
	hasShotPose bool

	active    bool
	start     float64
	lastError float64
}

// NewAligner constructs an idle aligner with no shot history.
func NewAligner(tune TuningSource) *Aligner {
	return &Aligner{tune: tune}
}

// Active reports whether an alignment is running.
func (a *Aligner) Active() bool { return a.active }

// NeedsRealign reports whether the robot moved more than the threshold
// since the previous shot. Missing history or pose always realigns.
func (a *Aligner) NeedsRealign(pose Pose2D, ok bool) bool {
	if !ok || !a.hasShotPose {
		return true
	}
	moved := math.Hypot(pose.X-a.shotPose.X, pose.Y-a.shotPose.Y)
	return moved > a.tune.Current().Align.MoveThreshold
}

// RecordShotPose stores the pose a shot was taken from.
func (a *Aligner) RecordShotPose(pose Pose2D, ok bool) {
	a.shotPose = pose
	a.hasShotPose = ok
}

// ForgetShotPose clears the shot history so the next shot realigns.
func (a *Aligner) ForgetShotPose() {
	a.hasShotPose = false
}

// Begin starts a new alignment at time t.
func (a *Aligner) Begin(t float64) {
	a.active = true
	a.start = t
	a.lastError = 0
}

// Abort stops an alignment in progress.
func (a *Aligner) Abort() {
	a.active = false
}

// Step runs the PD law on the horizontal target offset (degrees) and
// returns the turn rate. Anything but AlignTurning ends the alignment.
func (a *Aligner) Step(t, offset float64, visible bool) (float64, AlignStatus) {
	if !a.active {
		return 0, AlignAligned
	}
	cfg := a.tune.Current().Align

	if !visible || !finite(offset) {
		a.active = false
		return 0, AlignNoTarget
	}
	if math.Abs(offset) < cfg.Tolerance {
		a.active = false
		return 0, AlignAligned
	}
	if cfg.Timeout > 0 && t-a.start > cfg.Timeout {
		a.active = false
		return 0, AlignTimedOut
	}

	turn := -(cfg.KP*offset + cfg.KD*(offset-a.lastError))
	a.lastError = offset
	return clamp(turn, -1, 1), AlignTurning
}
