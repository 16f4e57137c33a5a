package launch_ctl

import "fmt"

// DistanceToGoal is the planar distance from pose to the alliance goal.
func DistanceToGoal(pose Pose2D, goal GoalGeometry, side Alliance) float64 {
	return Distance2D(Point{X: pose.X, Y: pose.Y}, goal.Center(side))
}

// PoseSource supplies a localization fix and the goal tag offset.
type PoseSource interface {
	Pose() (Pose2D, bool)
	Offset() (float64, bool)
}

// PoseRangeProvider derives range-to-goal from a pose fix and the
// current goal geometry.
type PoseRangeProvider struct {
	tune TuningSource
	src  PoseSource
}

// NewPoseRangeProvider adapts src into a RangeProvider.
func NewPoseRangeProvider(tune TuningSource, src PoseSource) *PoseRangeProvider {
	return &PoseRangeProvider{tune: tune, src: src}
}

// RangeToGoal is the floor distance from the robot pose to the goal of side.
func (p *PoseRangeProvider) RangeToGoal(side Alliance) (float64, bool) {
	pose, ok := p.src.Pose()
	if !ok || !finite(pose.X) || !finite(pose.Y) {
		return 0, false
	}
	return DistanceToGoal(pose, p.tune.Current().Goal, side), true
}

// HasTarget reports whether a pose fix is available.
func (p *PoseRangeProvider) HasTarget() bool {
	_, ok := p.src.Pose()
	return ok
}

// RobotPose forwards the pose source.
func (p *PoseRangeProvider) RobotPose() (Pose2D, bool) {
	return p.src.Pose()
}

// TargetOffset is the horizontal angle to the goal tag in degrees.
func (p *PoseRangeProvider) TargetOffset() (float64, bool) {
	return p.src.Offset()
}

// Zone is the operator-facing quality band for a distance.
type Zone int

const (
	ZoneUnknown Zone = iota
	ZoneOutside
	ZoneInRange
	ZoneOptimal
)

func (z Zone) String() string {
	switch z {
	case ZoneUnknown:
		return "UNKNOWN"
	case ZoneOutside:
		return "OUTSIDE"
	case ZoneInRange:
		return "IN_RANGE"
	case ZoneOptimal:
		return "OPTIMAL"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

// ClassifyZone buckets a distance into the configured shooting zones.
func ClassifyZone(cfg ZoneConfig, distance float64) Zone {
	switch {
	case !finite(distance):
		return ZoneUnknown
	case distance >= cfg.OptimalMin && distance <= cfg.OptimalMax:
		return ZoneOptimal
	case distance >= cfg.Min && distance <= cfg.Max:
		return ZoneInRange
	default:
		return ZoneOutside
	}
}
