package launch_ctl

import "math"

// CompensationMultiplier is nominal/measured battery voltage, capped.
// It is 1 when compensation is disabled or the reading is unusable.
func CompensationMultiplier(cfg VoltageConfig, volts float64) float64 {
	if !cfg.Enabled || !finite(volts) || volts <= 0 || cfg.Nominal <= 0 {
		return 1
	}
	m := cfg.Nominal / volts
	if cfg.MaxMultiplier > 0 {
		m = math.Min(m, cfg.MaxMultiplier)
	}
	return m
}

// CompensatePower scales a requested flywheel power for battery sag,
// clamped to [0, 1].
func CompensatePower(cfg VoltageConfig, power, volts float64) float64 {
	return clamp(power*CompensationMultiplier(cfg, volts), 0, 1)
}
