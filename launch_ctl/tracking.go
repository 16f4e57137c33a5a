package launch_ctl

import "math"

// TrackerConfig controls smoothing and dropout handling for the vision
// heading offset.
type TrackerConfig struct {
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	HoldSeconds float64 `json:"hold_seconds" yaml:"hold_seconds"`
}

// TargetTrack is the filtered view of the goal tag.
type TargetTrack struct {
	T      float64
	Valid  bool
	Offset float64
	Rate   float64
	Age    float64
}

// TargetTracker smooths the heading offset to the goal tag and holds
// the last estimate through short detection dropouts.
type TargetTracker struct {
	cfg TrackerConfig

	started   bool
	lastT     float64
	offset    float64
	rate      float64
	lastRaw   float64
	hasRaw    bool
	lastValid float64
	everValid bool
}

// NewTargetTracker constructs a tracker with the provided configuration.
func NewTargetTracker(cfg TrackerConfig) *TargetTracker {
	return &TargetTracker{cfg: cfg}
}

// Update ingests one observation and returns the filtered track.
func (tr *TargetTracker) Update(t float64, detected bool, offset float64) TargetTrack {
	if !tr.started {
		tr.started = true
		tr.lastT = t
	}
	dt := math.Max(1e-3, t-tr.lastT)
	tr.lastT = t

	good := detected && finite(offset)
	if good {
		if tr.hasRaw {
			tr.rate = (offset - tr.lastRaw) / dt
		}
		a := clamp(tr.cfg.Alpha, 0, 1)
		if !tr.everValid || t-tr.lastValid > tr.cfg.HoldSeconds {
			// reacquired: restart the filter at the raw reading
			a = 0
		}
		tr.offset = a*tr.offset + (1-a)*offset
		tr.lastRaw = offset
		tr.hasRaw = true
		tr.lastValid = t
		tr.everValid = true
		return TargetTrack{T: t, Valid: true, Offset: tr.offset, Rate: tr.rate}
	}

	age := 999.0
	if tr.everValid {
		age = t - tr.lastValid
	}
	valid := tr.everValid && age <= tr.cfg.HoldSeconds
	if !valid {
		tr.rate = 0
		tr.hasRaw = false
	}
	return TargetTrack{T: t, Valid: valid, Offset: tr.offset, Rate: tr.rate, Age: age}
}
