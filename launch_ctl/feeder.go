package launch_ctl

// Feeder is the transfer servo that pushes a ball from the magazine into
// the flywheel. It is positional, so it has no tick of its own.
type Feeder struct {
	tune     TuningSource
	override bool
	position float64
	feeding  bool
	feeds    int
}

// NewFeeder constructs a feeder at its rest position.
func NewFeeder(tune TuningSource) *Feeder {
	return &Feeder{tune: tune}
}

// Feed moves the servo to the transfer position.
func (f *Feeder) Feed() {
	f.override = false
	f.feeding = true
	f.feeds++
}

// Retract returns the servo to rest.
func (f *Feeder) Retract() {
	f.override = false
	f.feeding = false
}

// SetPosition holds an explicit servo position in [0, 1].
func (f *Feeder) SetPosition(position float64) {
	if !finite(position) {
		return
	}
	f.override = true
	f.feeding = false
	f.position = clamp(position, 0, 1)
}

// Nudge shifts the current target position by delta.
func (f *Feeder) Nudge(delta float64) {
	f.SetPosition(f.Position() + delta)
}

// Feeding reports whether the servo is commanded to the transfer position.
func (f *Feeder) Feeding() bool { return f.feeding }

// Feeds counts feed strokes since construction.
func (f *Feeder) Feeds() int { return f.feeds }

// Position is the servo target to write this cycle.
func (f *Feeder) Position() float64 {
	if f.override {
		return f.position
	}
	cfg := f.tune.Current().Feed
	if f.feeding {
		return clamp(cfg.FeedPosition, 0, 1)
	}
	return clamp(cfg.RestPosition, 0, 1)
}
