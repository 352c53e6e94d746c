// Package config loads and validates the YAML configuration described in
// spec §6: every field is optional, with documented defaults, and
// Validate collects every violation rather than failing on the first.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Conveyor mirrors the conveyor.* config keys.
type Conveyor struct {
	TotalLengthMM       float64 `yaml:"total_length_mm"`
	InfeedToDiverterMM  float64 `yaml:"infeed_to_diverter_mm"`
	DiverterToOutfeedMM float64 `yaml:"diverter_to_outfeed_mm"`
	BeltSpeedMMS        float64 `yaml:"belt_speed_mms"`
	BoxLengthMM         float64 `yaml:"box_length_mm"`
}

// Boxes mirrors the boxes.* config keys.
type Boxes struct {
	ArrivalRatePerHour float64 `yaml:"arrival_rate_per_hour"`
	ArrivalJitterPct   float64 `yaml:"arrival_jitter_pct"`
}

// Jams mirrors the jams.* config keys.
type Jams struct {
	Enabled           bool    `yaml:"enabled"`
	ProbabilityPerBox float64 `yaml:"probability_per_box"`
	JamLocation       string  `yaml:"jam_location"`
}

// Simulation mirrors the simulation.* config keys.
type Simulation struct {
	DurationSec      float64 `yaml:"duration_sec"`
	TimeScale        float64 `yaml:"time_scale"`
	UpdateIntervalMs int     `yaml:"update_interval_ms"`
}

// Logging mirrors the logging.* config keys.
type Logging struct {
	OutputDir      string  `yaml:"output_dir"`
	LogIntervalSec float64 `yaml:"log_interval_sec"`
	LogEvents      bool    `yaml:"log_events"`
}

// Config is the full, parsed configuration document.
type Config struct {
	Conveyor   Conveyor   `yaml:"conveyor"`
	Boxes      Boxes      `yaml:"boxes"`
	Jams       Jams       `yaml:"jams"`
	Simulation Simulation `yaml:"simulation"`
	Logging    Logging    `yaml:"logging"`
}

var validJamLocations = map[string]bool{
	"random": true, "infeed": true, "diverter": true, "outfeed_b": true, "outfeed_c": true,
}

// Default returns the documented default configuration (spec §6).
func Default() Config {
	return Config{
		Conveyor: Conveyor{
			TotalLengthMM:       3000,
			InfeedToDiverterMM:  1500,
			DiverterToOutfeedMM: 1000,
			BeltSpeedMMS:        500,
			BoxLengthMM:         200,
		},
		Boxes: Boxes{
			ArrivalRatePerHour: 72,
			ArrivalJitterPct:   20,
		},
		Jams: Jams{
			Enabled:           true,
			ProbabilityPerBox: 0.03,
			JamLocation:       "random",
		},
		Simulation: Simulation{
			DurationSec:      900,
			TimeScale:        1.0,
			UpdateIntervalMs: 50,
		},
		Logging: Logging{
			OutputDir:      "data",
			LogIntervalSec: 1.0,
			LogEvents:      true,
		},
	}
}

// Load reads path, merging it over Default(). A missing file is not an
// error -- it yields the defaults, mirroring the reference's
// "config file not found, using defaults" behavior.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// use defaults
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate collects every invalid field into a single *multierror.Error,
// rather than stopping at the first, so an operator sees every problem in
// one pass.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Conveyor.TotalLengthMM <= 0 {
		result = multierror.Append(result, fmt.Errorf("conveyor.total_length_mm must be positive, got %g", c.Conveyor.TotalLengthMM))
	}
	if c.Conveyor.InfeedToDiverterMM <= 0 {
		result = multierror.Append(result, fmt.Errorf("conveyor.infeed_to_diverter_mm must be positive, got %g", c.Conveyor.InfeedToDiverterMM))
	}
	if c.Conveyor.DiverterToOutfeedMM <= 0 {
		result = multierror.Append(result, fmt.Errorf("conveyor.diverter_to_outfeed_mm must be positive, got %g", c.Conveyor.DiverterToOutfeedMM))
	}
	if c.Conveyor.BeltSpeedMMS <= 0 {
		result = multierror.Append(result, fmt.Errorf("conveyor.belt_speed_mms must be positive, got %g", c.Conveyor.BeltSpeedMMS))
	}
	if c.Conveyor.BoxLengthMM <= 0 || c.Conveyor.BoxLengthMM >= c.Conveyor.InfeedToDiverterMM {
		result = multierror.Append(result, fmt.Errorf("conveyor.box_length_mm must be positive and less than infeed_to_diverter_mm, got %g", c.Conveyor.BoxLengthMM))
	}

	if c.Boxes.ArrivalRatePerHour < 0 {
		result = multierror.Append(result, fmt.Errorf("boxes.arrival_rate_per_hour must be >= 0, got %g", c.Boxes.ArrivalRatePerHour))
	}
	if c.Boxes.ArrivalJitterPct < 0 || c.Boxes.ArrivalJitterPct > 100 {
		result = multierror.Append(result, fmt.Errorf("boxes.arrival_jitter_pct must be in [0, 100], got %g", c.Boxes.ArrivalJitterPct))
	}

	if c.Jams.ProbabilityPerBox < 0 || c.Jams.ProbabilityPerBox > 1 {
		result = multierror.Append(result, fmt.Errorf("jams.probability_per_box must be in [0, 1], got %g", c.Jams.ProbabilityPerBox))
	}
	if c.Jams.JamLocation != "" && !validJamLocations[c.Jams.JamLocation] {
		result = multierror.Append(result, fmt.Errorf("jams.jam_location %q is not one of random/infeed/diverter/outfeed_b/outfeed_c", c.Jams.JamLocation))
	}

	if c.Simulation.DurationSec <= 0 {
		result = multierror.Append(result, fmt.Errorf("simulation.duration_sec must be positive, got %g", c.Simulation.DurationSec))
	}
	if c.Simulation.TimeScale <= 0 {
		result = multierror.Append(result, fmt.Errorf("simulation.time_scale must be positive, got %g", c.Simulation.TimeScale))
	}
	if c.Simulation.UpdateIntervalMs <= 0 {
		result = multierror.Append(result, fmt.Errorf("simulation.update_interval_ms must be positive, got %d", c.Simulation.UpdateIntervalMs))
	}

	if c.Logging.LogIntervalSec < 0 {
		result = multierror.Append(result, fmt.Errorf("logging.log_interval_sec must be >= 0, got %g", c.Logging.LogIntervalSec))
	}

	return result.ErrorOrNil()
}
