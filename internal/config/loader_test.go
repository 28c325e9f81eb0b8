package config

import (
	"strings"
	"testing"
	"time"

	"github.com/promptwheel/promptwheel/internal/filler"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
engine:
  match:
    threshold: 0.75
    window: 8
  pace:
    pause_threshold_ms: 1500
    smoothing_alpha: 0.25
    target_wpm: 150
  filler:
    sensitivity: high
    words: ["um", "you know"]
  scroll:
    tick_interval_ms: 40
    smoothing_factor: 0.5
    smoothing_window: 10
    acceleration_limit: 100
    deceleration_limit: 180
    responsiveness: 0.9
    pause_decay_ms: 500
report:
  postgres_dsn: "postgres://localhost:5432/promptwheel"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Engine.Match.Threshold != 0.75 {
		t.Errorf("Match.Threshold = %v, want 0.75", cfg.Engine.Match.Threshold)
	}
	if cfg.Engine.Filler.Sensitivity != filler.SensitivityHigh {
		t.Errorf("Filler.Sensitivity = %q, want high", cfg.Engine.Filler.Sensitivity)
	}
	if cfg.Report.PostgresDSN == "" {
		t.Error("Report.PostgresDSN is empty")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := LoadFromReader(strings.NewReader("server:\n  listne_addr: \":8080\"\n"))
	if err == nil {
		t.Fatal("unknown field accepted, want error")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	cfg.Server.LogLevel = "verbose"
	cfg.Engine.Match.Threshold = 1.5
	cfg.Engine.Pace.SmoothingAlpha = -0.1
	cfg.Engine.Filler.Sensitivity = "extreme"
	cfg.Engine.Scroll.Responsiveness = 2

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted invalid config")
	}
	for _, want := range []string{
		"server.log_level",
		"engine.match.threshold",
		"engine.pace.smoothing_alpha",
		"engine.filler.sensitivity",
		"engine.scroll.responsiveness",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	t.Parallel()
	if err := Validate(&Config{}); err != nil {
		t.Errorf("Validate zero config: %v", err)
	}
}

func TestEngineConfig_Settings(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	set := cfg.Engine.Settings()
	if set.MatchThreshold != 0.75 {
		t.Errorf("MatchThreshold = %v, want 0.75", set.MatchThreshold)
	}
	if set.Pace.PauseThreshold != 1500*time.Millisecond {
		t.Errorf("PauseThreshold = %v, want 1.5s", set.Pace.PauseThreshold)
	}
	if set.Scroll.TickInterval != 40*time.Millisecond {
		t.Errorf("TickInterval = %v, want 40ms", set.Scroll.TickInterval)
	}
	if len(set.Filler.Words) != 2 {
		t.Errorf("Filler.Words = %v, want 2 entries", set.Filler.Words)
	}
}

func TestEngineConfig_Tuning(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	tun := cfg.Engine.Tuning()
	if tun.MatchThreshold != 0.75 {
		t.Errorf("MatchThreshold = %v, want 0.75", tun.MatchThreshold)
	}
	if tun.ScrollSmoothing != 0.5 {
		t.Errorf("ScrollSmoothing = %v, want 0.5", tun.ScrollSmoothing)
	}
	if tun.FillerSensitivity != filler.SensitivityHigh {
		t.Errorf("FillerSensitivity = %q, want high", tun.FillerSensitivity)
	}
}
