package launch_ctl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LiveConfig controls UDP input settings for sensor packets. After
// StaleSeconds without a packet the loop treats the sensors as lost.
type LiveConfig struct {
	UDPAddr      string  `json:"udp_addr" yaml:"udp_addr"`
	ReadBuffer   int     `json:"read_buffer" yaml:"read_buffer"`
	StaleSeconds float64 `json:"stale_seconds" yaml:"stale_seconds"`
}

// CommandConfig controls the UDP listener for operator commands.
type CommandConfig struct {
	UDPAddr string `json:"udp_addr" yaml:"udp_addr"`
}

// OutputConfig controls UDP output settings for actuator commands.
type OutputConfig struct {
	UDPAddr string `json:"udp_addr" yaml:"udp_addr"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	Transitions bool `json:"transitions" yaml:"transitions"`
}

// SimConfig replaces the UDP sensor feed with a simulated robot.
type SimConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	X                float64 `json:"x_m" yaml:"x_m"`
	Y                float64 `json:"y_m" yaml:"y_m"`
	OffsetDeg        float64 `json:"offset_deg" yaml:"offset_deg"`
	HasTarget        bool    `json:"has_target" yaml:"has_target"`
	CoastTime        float64 `json:"coast_time_s" yaml:"coast_time_s"`
	IndexerDegPerSec float64 `json:"indexer_deg_per_s" yaml:"indexer_deg_per_s"`
	TurnDegPerSec    float64 `json:"turn_deg_per_s" yaml:"turn_deg_per_s"`
	BatteryVolts     float64 `json:"battery_volts" yaml:"battery_volts"`
}

// AppConfig aggregates all configuration sections. When TuningFile is
// set it replaces Tuning at startup and is re-read on "reload".
type AppConfig struct {
	Hz         float64          `json:"hz" yaml:"hz"`
	Alliance   Alliance         `json:"alliance" yaml:"alliance"`
	Tuning     TuningParameters `json:"tuning" yaml:"tuning"`
	TuningFile string           `json:"tuning_file" yaml:"tuning_file"`
	Tracker    TrackerConfig    `json:"tracker" yaml:"tracker"`
	Live       LiveConfig       `json:"live" yaml:"live"`
	Commands   CommandConfig    `json:"commands" yaml:"commands"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Viz        VizConfig        `json:"viz" yaml:"viz"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Sim        SimConfig        `json:"sim" yaml:"sim"`
}

// DefaultAppConfig is the base every config file is decoded over.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Hz:       50,
		Alliance: AllianceBlue,
		Tuning:   DefaultTuning(),
		Tracker:  TrackerConfig{Alpha: 0.5, HoldSeconds: 0.3},
		Live:     LiveConfig{ReadBuffer: 2048, StaleSeconds: defaultStaleSeconds},
		Sim: SimConfig{
			X:                1.8,
			Y:                72.0 * metersPerInch,
			HasTarget:        true,
			CoastTime:        20,
			IndexerDegPerSec: 360,
			TurnDegPerSec:    90,
			BatteryVolts:     12.5,
		},
	}
}

// LoadConfig reads a JSON or YAML config from disk.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid tuning in %q", path)
	}
	return cfg, nil
}

// LoadTuning reads a standalone tuning file over DefaultTuning.
func LoadTuning(path string) (TuningParameters, error) {
	p := DefaultTuning()
	if err := decodeFile(path, &p); err != nil {
		return p, err
	}
	if err := p.Validate(); err != nil {
		return p, errors.Wrapf(err, "invalid tuning in %q", path)
	}
	return p, nil
}

// decodeFile picks the decoder from the file extension.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %q", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return errors.Wrapf(err, "parse yaml %q", path)
		}
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return errors.Wrapf(err, "parse json %q", path)
		}
	}
	return nil
}
