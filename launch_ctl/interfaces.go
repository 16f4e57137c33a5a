package launch_ctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Alliance selects which goal the robot is scoring on.
type Alliance int

const (
	AllianceBlue Alliance = iota + 1
	AllianceRed
)

func (a Alliance) String() string {
	switch a {
	case AllianceBlue:
		return "BLUE"
	case AllianceRed:
		return "RED"
	default:
		return fmt.Sprintf("Alliance(%d)", int(a))
	}
}

// ParseAlliance converts "red"/"blue" into an Alliance.
func ParseAlliance(value string) (Alliance, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BLUE", "B":
		return AllianceBlue, nil
	case "RED", "R":
		return AllianceRed, nil
	default:
		return AllianceBlue, fmt.Errorf("unknown alliance %q", value)
	}
}

// MarshalText renders the alliance name for JSON and YAML output.
func (a Alliance) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON allows alliances to be loaded from JSON strings.
func (a *Alliance) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseAlliance(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalYAML allows alliances to be loaded from YAML strings.
func (a *Alliance) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseAlliance(value.Value)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Point is a field coordinate in meters.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pose2D is a field-relative robot pose.
//
// X and Y are meters, Heading is radians counter-clockwise from +X.
type Pose2D struct {
	X       float64
	Y       float64
	Heading float64
}

// RangeProvider is the vision/localization collaborator.
//
// TargetOffset is the horizontal offset of the goal tag in the camera
// image (degrees, positive to the right). All queries report ok=false
// when no estimate exists.
type RangeProvider interface {
	RangeToGoal(side Alliance) (float64, bool)
	HasTarget() bool
	RobotPose() (Pose2D, bool)
	TargetOffset() (float64, bool)
}

// Chassis is the drive-train surface touched only by realignment.
type Chassis interface {
	SetTurnRate(value float64)
	SetDrivePower(axial, lateral, yaw float64)
}

// Sensors is one control cycle's worth of raw measurements.
type Sensors struct {
	T            float64 // monotonic seconds
	FlywheelRPM  float64
	IndexerDeg   float64
	BatteryVolts float64
}

// Actuators is the command bundle written at the end of a cycle.
type Actuators struct {
	T             float64
	FlywheelPower float64 // [0, 1]
	IndexerPower  float64 // [-1, 1]
	FeedPosition  float64 // [0, 1]
	TurnRate      float64 // [-1, 1], only meaningful while Turning
	Turning       bool
	IntakePower   float64 // [-1, 1]
}
