package launch_ctl

import (
	"math"
	"sync/atomic"

	"github.com/pkg/errors"
)

// LauncherConfig holds the flywheel controller gains and timing.
type LauncherConfig struct {
	KP                   float64 `json:"kp" yaml:"kp"`
	Tolerance            float64 `json:"tolerance" yaml:"tolerance"`
	DefaultRPM           float64 `json:"default_rpm" yaml:"default_rpm"`
	LaunchDwell          float64 `json:"launch_dwell_s" yaml:"launch_dwell_s"`
	MinRecoveryTime      float64 `json:"min_recovery_time_s" yaml:"min_recovery_time_s"`
	RecoverySafetyFactor float64 `json:"recovery_safety_factor" yaml:"recovery_safety_factor"`
}

// RotationKind selects how the indexer advances one slot.
type RotationKind string

const (
	RotationPID   RotationKind = "pid"
	RotationTimed RotationKind = "timed"
)

// IndexerConfig holds the magazine position controller parameters.
type IndexerConfig struct {
	Rotation         RotationKind `json:"rotation" yaml:"rotation"`
	SlotDegrees      float64      `json:"slot_deg" yaml:"slot_deg"`
	KP               float64      `json:"kp" yaml:"kp"`
	KI               float64      `json:"ki" yaml:"ki"`
	KD               float64      `json:"kd" yaml:"kd"`
	MaxIntegral      float64      `json:"max_integral" yaml:"max_integral"`
	DerivativeFilter float64      `json:"derivative_filter" yaml:"derivative_filter"`
	MinPower         float64      `json:"min_power" yaml:"min_power"`
	MaxPower         float64      `json:"max_power" yaml:"max_power"`
	Deadband         float64      `json:"deadband_deg" yaml:"deadband_deg"`
	Tolerance        float64      `json:"tolerance_deg" yaml:"tolerance_deg"`
	FullRotationTime float64      `json:"full_rotation_time_s" yaml:"full_rotation_time_s"`
	TimedPower       float64      `json:"timed_power" yaml:"timed_power"`
	EncoderMaxVolts  float64      `json:"encoder_max_volts" yaml:"encoder_max_volts"`
}

// FeedConfig holds the transfer servo positions.
type FeedConfig struct {
	RestPosition float64 `json:"rest_position" yaml:"rest_position"`
	FeedPosition float64 `json:"feed_position" yaml:"feed_position"`
}

// IntakeConfig holds the roller powers.
type IntakeConfig struct {
	CollectPower float64 `json:"collect_power" yaml:"collect_power"`
	EjectPower   float64 `json:"eject_power" yaml:"eject_power"`
}

// SequenceConfig holds the per-stage minimum dwell times.
type SequenceConfig struct {
	LocalizeDwell float64 `json:"localize_dwell_s" yaml:"localize_dwell_s"`
	FeedDwell     float64 `json:"feed_dwell_s" yaml:"feed_dwell_s"`
	FireDwell     float64 `json:"fire_dwell_s" yaml:"fire_dwell_s"`
	RotateDwell   float64 `json:"rotate_dwell_s" yaml:"rotate_dwell_s"`
	BurstShots    int     `json:"burst_shots" yaml:"burst_shots"`
}

// AlignConfig holds the heading realignment PD loop parameters.
type AlignConfig struct {
	KP            float64 `json:"kp" yaml:"kp"`
	KD            float64 `json:"kd" yaml:"kd"`
	Tolerance     float64 `json:"tolerance_deg" yaml:"tolerance_deg"`
	MoveThreshold float64 `json:"move_threshold_m" yaml:"move_threshold_m"`
	Timeout       float64 `json:"timeout_s" yaml:"timeout_s"`
}

// ZoneConfig holds the distance bands reported to the operator.
type ZoneConfig struct {
	Min        float64 `json:"min_m" yaml:"min_m"`
	Max        float64 `json:"max_m" yaml:"max_m"`
	OptimalMin float64 `json:"optimal_min_m" yaml:"optimal_min_m"`
	OptimalMax float64 `json:"optimal_max_m" yaml:"optimal_max_m"`
}

// VoltageConfig controls battery compensation of flywheel power.
type VoltageConfig struct {
	Enabled       bool    `json:"enabled" yaml:"enabled"`
	Nominal       float64 `json:"nominal_v" yaml:"nominal_v"`
	MaxMultiplier float64 `json:"max_multiplier" yaml:"max_multiplier"`
}

// TuningParameters is every tunable constant of the launch core.
type TuningParameters struct {
	Goal     GoalGeometry   `json:"goal" yaml:"goal"`
	Launch   LaunchGeometry `json:"launch" yaml:"launch"`
	Motor    MotorConfig    `json:"motor" yaml:"motor"`
	Limits   ShotLimits     `json:"limits" yaml:"limits"`
	Launcher LauncherConfig `json:"launcher" yaml:"launcher"`
	Indexer  IndexerConfig  `json:"indexer" yaml:"indexer"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	Intake   IntakeConfig   `json:"intake" yaml:"intake"`
	Sequence SequenceConfig `json:"sequence" yaml:"sequence"`
	Align    AlignConfig    `json:"align" yaml:"align"`
	Zones    ZoneConfig     `json:"zones" yaml:"zones"`
	Voltage  VoltageConfig  `json:"voltage" yaml:"voltage"`
}

const metersPerInch = 0.0254

// DefaultTuning returns the measured baseline for the competition robot.
func DefaultTuning() TuningParameters {
	return TuningParameters{
		Goal: GoalGeometry{
			RimHeight:    0.9845,
			OpeningWidth: 0.673,
			OpeningDepth: 0.465,
			Blue:         Point{X: 144.0 * metersPerInch, Y: 72.0 * metersPerInch},
			Red:          Point{X: 0, Y: 72.0 * metersPerInch},
		},
		Launch: LaunchGeometry{
			LaunchHeight:        0.2255,
			LaunchAngle:         60.0 * math.Pi / 180.0,
			FlywheelRadius:      0.036,
			FlywheelInnerRadius: 0.030,
			FlywheelMass:        0.20,
			BallMass:            0.065,
			ContactArcDeg:       45.0,
			Efficiency:          0.46,
		},
		Motor: MotorConfig{
			StallTorque: 0.170,
			GearRatio:   1.0,
			TicksPerRev: 28.0,
		},
		Limits: ShotLimits{
			MinShotDistance: 1.0,
			MaxShotDistance: 3.5,
			MinStableRPM:    500,
			MaxFlywheelRPM:  5000,
		},
		Launcher: LauncherConfig{
			KP:                   0.0002,
			Tolerance:            0.05,
			DefaultRPM:           3500,
			LaunchDwell:          0.3,
			MinRecoveryTime:      0.15,
			RecoverySafetyFactor: 1.2,
		},
		Indexer: IndexerConfig{
			Rotation:         RotationPID,
			SlotDegrees:      60,
			KP:               0.008,
			KI:               0.0,
			KD:               0.0005,
			MaxIntegral:      50,
			DerivativeFilter: 0.2,
			MinPower:         0.08,
			MaxPower:         0.6,
			Deadband:         3,
			Tolerance:        6,
			FullRotationTime: 1.2,
			TimedPower:       0.5,
			EncoderMaxVolts:  3.3,
		},
		Feed: FeedConfig{
			RestPosition: 0.2639,
			FeedPosition: 0.0,
		},
		Intake: IntakeConfig{
			CollectPower: 0.9,
			EjectPower:   -0.9,
		},
		Sequence: SequenceConfig{
			LocalizeDwell: 0.5,
			FeedDwell:     0.35,
			FireDwell:     0.6,
			RotateDwell:   0.3,
			BurstShots:    3,
		},
		Align: AlignConfig{
			KP:            0.03,
			KD:            0.01,
			Tolerance:     2.0,
			MoveThreshold: 0.05,
			Timeout:       1.5,
		},
		Zones: ZoneConfig{
			Min:        1.0,
			Max:        2.5,
			OptimalMin: 1.5,
			OptimalMax: 2.0,
		},
		Voltage: VoltageConfig{
			Enabled:       true,
			Nominal:       12.0,
			MaxMultiplier: 1.4,
		},
	}
}

// Validate rejects parameter sets the controllers cannot run with.
func (p *TuningParameters) Validate() error {
	l := p.Launch
	if l.FlywheelRadius <= 0 {
		return errors.Errorf("launch.flywheel_radius_m must be > 0, got %.4f", l.FlywheelRadius)
	}
	if l.FlywheelInnerRadius < 0 || l.FlywheelInnerRadius > l.FlywheelRadius {
		return errors.Errorf("launch.flywheel_inner_radius_m must be in [0, %.4f], got %.4f",
			l.FlywheelRadius, l.FlywheelInnerRadius)
	}
	if l.FlywheelMass <= 0 {
		return errors.Errorf("launch.flywheel_mass_kg must be > 0, got %.4f", l.FlywheelMass)
	}
	if l.BallMass < 0 {
		return errors.Errorf("launch.ball_mass_kg must be >= 0, got %.4f", l.BallMass)
	}
	if l.Efficiency <= 0 || l.Efficiency > 1 {
		return errors.Errorf("launch.efficiency must be in (0, 1], got %.3f", l.Efficiency)
	}
	if l.LaunchAngle < 0 || l.LaunchAngle >= math.Pi/2 {
		return errors.Errorf("launch.launch_angle_rad must be in [0, pi/2), got %.4f", l.LaunchAngle)
	}

	lim := p.Limits
	if lim.MinShotDistance < 0 || lim.MinShotDistance >= lim.MaxShotDistance {
		return errors.Errorf("limits shot distance invalid: min(%.2f) >= max(%.2f)",
			lim.MinShotDistance, lim.MaxShotDistance)
	}
	if lim.MinStableRPM < 0 || lim.MinStableRPM >= lim.MaxFlywheelRPM {
		return errors.Errorf("limits rpm invalid: min(%.0f) >= max(%.0f)",
			lim.MinStableRPM, lim.MaxFlywheelRPM)
	}

	if p.Motor.StallTorque <= 0 || p.Motor.GearRatio <= 0 {
		return errors.Errorf("motor stall torque and gear ratio must be > 0")
	}

	lc := p.Launcher
	if lc.KP < 0 {
		return errors.Errorf("launcher.kp must be >= 0, got %g", lc.KP)
	}
	if lc.Tolerance <= 0 || lc.Tolerance >= 1 {
		return errors.Errorf("launcher.tolerance must be in (0, 1), got %.3f", lc.Tolerance)
	}
	if lc.LaunchDwell < 0 || lc.MinRecoveryTime < 0 {
		return errors.Errorf("launcher dwell and recovery floor must be >= 0")
	}
	if lc.RecoverySafetyFactor < 1.2 {
		return errors.Errorf("launcher.recovery_safety_factor must be >= 1.2, got %.2f", lc.RecoverySafetyFactor)
	}

	ix := p.Indexer
	switch ix.Rotation {
	case RotationPID, RotationTimed:
	default:
		return errors.Errorf("indexer.rotation must be %q or %q, got %q", RotationPID, RotationTimed, ix.Rotation)
	}
	if ix.SlotDegrees <= 0 || ix.SlotDegrees >= 360 {
		return errors.Errorf("indexer.slot_deg must be in (0, 360), got %.1f", ix.SlotDegrees)
	}
	if ix.MaxPower <= 0 || ix.MaxPower > 1 {
		return errors.Errorf("indexer.max_power must be in (0, 1], got %.2f", ix.MaxPower)
	}
	if ix.Rotation == RotationTimed && (ix.FullRotationTime <= 0 || ix.TimedPower == 0) {
		return errors.Errorf("timed rotation needs full_rotation_time_s > 0 and timed_power != 0")
	}

	in := p.Intake
	if in.CollectPower < -1 || in.CollectPower > 1 || in.EjectPower < -1 || in.EjectPower > 1 {
		return errors.Errorf("intake powers must be in [-1, 1], got collect %.2f eject %.2f",
			in.CollectPower, in.EjectPower)
	}

	sq := p.Sequence
	if sq.LocalizeDwell < 0 || sq.FeedDwell < 0 || sq.FireDwell < 0 || sq.RotateDwell < 0 {
		return errors.Errorf("sequence dwell times must be >= 0")
	}
	if sq.BurstShots < 1 {
		return errors.Errorf("sequence.burst_shots must be >= 1, got %d", sq.BurstShots)
	}

	if p.Align.Tolerance <= 0 {
		return errors.Errorf("align.tolerance_deg must be > 0, got %.2f", p.Align.Tolerance)
	}
	return nil
}

// TuningSource hands components the parameter set to use right now.
type TuningSource interface {
	Current() *TuningParameters
}

// StaticTuning is a TuningSource that never changes.
type StaticTuning struct {
	p TuningParameters
}

// NewStaticTuning wraps a fixed parameter set.
func NewStaticTuning(p TuningParameters) *StaticTuning {
	return &StaticTuning{p: p}
}

// Current returns the wrapped parameters.
func (s *StaticTuning) Current() *TuningParameters {
	return &s.p
}

// TuningStore holds the live parameter set and swaps it atomically.
type TuningStore struct {
	cur atomic.Pointer[TuningParameters]
}

// NewTuningStore seeds a store with p.
func NewTuningStore(p TuningParameters) *TuningStore {
	s := &TuningStore{}
	s.cur.Store(&p)
	return s
}

// Current returns the active parameter set. Callers must not mutate it.
func (s *TuningStore) Current() *TuningParameters {
	return s.cur.Load()
}

// Store validates p and makes it active.
func (s *TuningStore) Store(p TuningParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.cur.Store(&p)
	return nil
}

// Reload reads a tuning file and makes it active when it validates.
// The previous set stays active on any error.
func (s *TuningStore) Reload(path string) error {
	p, err := LoadTuning(path)
	if err != nil {
		return err
	}
	s.cur.Store(&p)
	return nil
}
