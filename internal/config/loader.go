package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Match
	if t := cfg.Engine.Match.Threshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("engine.match.threshold %.2f is out of range (0, 1]", t))
	}
	if w := cfg.Engine.Match.Window; w < 0 {
		errs = append(errs, fmt.Errorf("engine.match.window %d must not be negative", w))
	}

	// Pace
	if ms := cfg.Engine.Pace.PauseThresholdMs; ms < 0 {
		errs = append(errs, fmt.Errorf("engine.pace.pause_threshold_ms %d must not be negative", ms))
	}
	if a := cfg.Engine.Pace.SmoothingAlpha; a != 0 && (a <= 0 || a > 1) {
		errs = append(errs, fmt.Errorf("engine.pace.smoothing_alpha %.2f is out of range (0, 1]", a))
	}
	if t := cfg.Engine.Pace.TargetWPM; t < 0 {
		errs = append(errs, fmt.Errorf("engine.pace.target_wpm %.1f must not be negative", t))
	}
	if p := cfg.Engine.Pace.TargetTolerancePct; p < 0 {
		errs = append(errs, fmt.Errorf("engine.pace.target_tolerance_pct %.1f must not be negative", p))
	}

	// Filler
	if s := cfg.Engine.Filler.Sensitivity; s != "" && !s.IsValid() {
		errs = append(errs, fmt.Errorf("engine.filler.sensitivity %q is invalid; valid values: low, medium, high", s))
	}

	// Scroll
	if f := cfg.Engine.Scroll.SmoothingFactor; f != 0 && (f <= 0 || f > 1) {
		errs = append(errs, fmt.Errorf("engine.scroll.smoothing_factor %.2f is out of range (0, 1]", f))
	}
	if r := cfg.Engine.Scroll.Responsiveness; r != 0 && (r <= 0 || r > 1) {
		errs = append(errs, fmt.Errorf("engine.scroll.responsiveness %.2f is out of range (0, 1]", r))
	}
	if ms := cfg.Engine.Scroll.TickIntervalMs; ms < 0 {
		errs = append(errs, fmt.Errorf("engine.scroll.tick_interval_ms %d must not be negative", ms))
	}
	if a := cfg.Engine.Scroll.AccelerationLimit; a < 0 {
		errs = append(errs, fmt.Errorf("engine.scroll.acceleration_limit %.1f must not be negative", a))
	}
	if d := cfg.Engine.Scroll.DecelerationLimit; d < 0 {
		errs = append(errs, fmt.Errorf("engine.scroll.deceleration_limit %.1f must not be negative", d))
	}

	return errors.Join(errs...)
}
