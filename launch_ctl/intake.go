package launch_ctl

// IntakeState is the roller mode.
type IntakeState int

const (
	IntakeIdle IntakeState = iota
	IntakeCollecting
	IntakeEjecting
)

func (s IntakeState) String() string {
	switch s {
	case IntakeIdle:
		return "IDLE"
	case IntakeCollecting:
		return "COLLECTING"
	case IntakeEjecting:
		return "EJECTING"
	default:
		return "UNKNOWN"
	}
}

// Intake is the floor roller that collects balls into the magazine or
// spits them back out. Like the feeder it has no tick: its power follows
// the current state and tuning.
type Intake struct {
	tune  TuningSource
	state IntakeState
}

// NewIntake constructs an idle intake.
func NewIntake(tune TuningSource) *Intake {
	return &Intake{tune: tune}
}

// Collect runs the roller inward.
func (i *Intake) Collect() { i.state = IntakeCollecting }

// Eject runs the roller outward.
func (i *Intake) Eject() { i.state = IntakeEjecting }

// Stop idles the roller.
func (i *Intake) Stop() { i.state = IntakeIdle }

// State is the current roller mode.
func (i *Intake) State() IntakeState { return i.state }

// Power is the roller power to write this cycle.
func (i *Intake) Power() float64 {
	cfg := i.tune.Current().Intake
	switch i.state {
	case IntakeCollecting:
		return clamp(cfg.CollectPower, -1, 1)
	case IntakeEjecting:
		return clamp(cfg.EjectPower, -1, 1)
	default:
		return 0
	}
}
