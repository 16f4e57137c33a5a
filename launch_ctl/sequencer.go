package launch_ctl

import "fmt"

// BurstStage is the sequencer's position inside a burst.
type BurstStage int

const (
	BurstIdle BurstStage = iota + 1
	BurstLocalize
	BurstFeed
	BurstFire
	BurstRotate
	BurstComplete
)

func (s BurstStage) String() string {
	switch s {
	case BurstIdle:
		return "IDLE"
	case BurstLocalize:
		return "LOCALIZE"
	case BurstFeed:
		return "FEED"
	case BurstFire:
		return "FIRE"
	case BurstRotate:
		return "ROTATE"
	case BurstComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("BurstStage(%d)", int(s))
	}
}

// FireGate decides when a Fire stage may commit its shot.
type FireGate int

const (
	// GateNone fires as soon as the feed dwell has passed.
	GateNone FireGate = iota
	// GateAtSpeed blocks until the launcher reports at speed.
	GateAtSpeed
	// GateRecovery gates the first shot on speed, then paces later shots
	// by the predicted recovery time since the previous shot.
	GateRecovery
)

func (g FireGate) String() string {
	switch g {
	case GateNone:
		return "NONE"
	case GateAtSpeed:
		return "AT_SPEED"
	case GateRecovery:
		return "RECOVERY"
	default:
		return fmt.Sprintf("FireGate(%d)", int(g))
	}
}

// BurstPlan shapes one burst request.
type BurstPlan struct {
	Shots           int // 0 runs until aborted
	Localize        bool
	RotateAfterLast bool
	Gate            FireGate
}

// BurstState is the per-request sequence state.
//
// Step counts transitions since Start; Entered is when the current stage
// timer was last reset.
type BurstState struct {
	Stage   BurstStage
	Shot    int
	Step    int
	Entered float64
}

// FireControl is what the sequencer needs from the launcher.
type FireControl interface {
	Fire(t float64)
	AtSpeed() bool
	TargetRPM() float64
	PredictRecoveryTime(rpm float64) float64
}

// SlotAdvancer is what the sequencer needs from the indexer.
type SlotAdvancer interface {
	RotateBySlot(t float64, direction int)
}

// FeedControl is what the sequencer needs from the feeder.
type FeedControl interface {
	Feed()
	Retract()
}

// Sequencer runs feed → fire → rotate bursts on dwell timers.
type Sequencer struct {
	tune  TuningSource
	fire  FireControl
	slots SlotAdvancer
	feed  FeedControl

	plan  BurstPlan
	state BurstState

	fired     bool
	shotRPM   float64
	lastShotT float64
	hasShot   bool
	shots     int
}

// NewSequencer wires a sequencer to its collaborators.
func NewSequencer(tune TuningSource, fire FireControl, slots SlotAdvancer, feed FeedControl) *Sequencer {
	return &Sequencer{
		tune:  tune,
		fire:  fire,
		slots: slots,
		feed:  feed,
		state: BurstState{Stage: BurstIdle},
	}
}

// State returns the current burst state.
func (s *Sequencer) State() BurstState { return s.state }

// Plan returns the active plan.
func (s *Sequencer) Plan() BurstPlan { return s.plan }

// ShotsFired counts shots committed in the current burst.
func (s *Sequencer) ShotsFired() int { return s.shots }

// Active reports whether a burst is in progress.
func (s *Sequencer) Active() bool {
	return s.state.Stage != BurstIdle && s.state.Stage != BurstComplete
}

// Done reports whether the last burst ran to completion.
func (s *Sequencer) Done() bool { return s.state.Stage == BurstComplete }

// Start begins a new burst at time t, discarding any burst in progress.
func (s *Sequencer) Start(t float64, plan BurstPlan) {
	if plan.Shots < 0 {
		plan.Shots = 1
	}
	s.plan = plan
	s.fired = false
	s.hasShot = false
	s.shots = 0
	s.state = BurstState{Shot: 1, Entered: t}
	if plan.Localize {
		s.state.Stage = BurstLocalize
		return
	}
	s.state.Stage = BurstFeed
	s.feed.Feed()
}

// Abort returns to Idle from any stage and retracts the feeder.
func (s *Sequencer) Abort() {
	if s.state.Stage == BurstFeed || s.state.Stage == BurstFire {
		s.feed.Retract()
	}
	s.fired = false
	s.state = BurstState{Stage: BurstIdle}
}

// Reset discards a completed burst.
func (s *Sequencer) Reset() {
	s.state = BurstState{Stage: BurstIdle}
}

// Tick advances at most one stage. It must run after the launcher tick
// so AtSpeed reflects this cycle's measurement.
func (s *Sequencer) Tick(t float64) {
	cfg := s.tune.Current().Sequence
	elapsed := t - s.state.Entered

	switch s.state.Stage {
	case BurstIdle, BurstComplete:
		return
	case BurstLocalize:
		if elapsed > cfg.LocalizeDwell {
			s.enter(t, BurstFeed)
			s.feed.Feed()
		}
	case BurstFeed:
		if elapsed > cfg.FeedDwell {
			s.fired = false
			s.enter(t, BurstFire)
		}
	case BurstFire:
		if !s.fired {
			if s.gateOpen(t) {
				s.commitShot(t)
			}
			return
		}
		if elapsed > cfg.FireDwell {
			if s.lastShot() && !s.plan.RotateAfterLast {
				s.enter(t, BurstComplete)
				return
			}
			s.enter(t, BurstRotate)
			s.slots.RotateBySlot(t, 1)
		}
	case BurstRotate:
		if elapsed > cfg.RotateDwell {
			if s.lastShot() {
				s.enter(t, BurstComplete)
				return
			}
			s.state.Shot++
			s.enter(t, BurstFeed)
			s.feed.Feed()
		}
	default:
		s.Abort()
	}
}

func (s *Sequencer) enter(t float64, stage BurstStage) {
	s.state.Stage = stage
	s.state.Entered = t
	s.state.Step++
}

func (s *Sequencer) lastShot() bool {
	return s.plan.Shots > 0 && s.state.Shot >= s.plan.Shots
}

func (s *Sequencer) gateOpen(t float64) bool {
	switch s.plan.Gate {
	case GateNone:
		return true
	case GateAtSpeed:
		return s.fire.AtSpeed()
	case GateRecovery:
		if !s.hasShot {
			return s.fire.AtSpeed()
		}
		return t-s.lastShotT >= s.fire.PredictRecoveryTime(s.shotRPM)
	default:
		return false
	}
}

// commitShot fires and restarts the Fire stage timer so the dwell is
// measured from the shot, not from stage entry.
func (s *Sequencer) commitShot(t float64) {
	if rpm := s.fire.TargetRPM(); rpm > 0 {
		s.shotRPM = rpm
	}
	s.fire.Fire(t)
	s.feed.Retract()
	s.fired = true
	s.hasShot = true
	s.lastShotT = t
	s.shots++
	s.state.Entered = t
}
