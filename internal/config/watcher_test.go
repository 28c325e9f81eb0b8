package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "engine:\n  match:\n    threshold: 0.7\n")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, cfg *Config) {
		changed <- cfg
	}, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Engine.Match.Threshold; got != 0.7 {
		t.Fatalf("initial threshold = %v, want 0.7", got)
	}

	// Ensure a distinct mtime even on coarse filesystem clocks.
	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "engine:\n  match:\n    threshold: 0.9\n")

	select {
	case cfg := <-changed:
		if cfg.Engine.Match.Threshold != 0.9 {
			t.Errorf("reloaded threshold = %v, want 0.9", cfg.Engine.Match.Threshold)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onChange not called after file modification")
	}

	if got := w.Current().Engine.Match.Threshold; got != 0.9 {
		t.Errorf("Current threshold = %v, want 0.9", got)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "engine:\n  match:\n    threshold: 0.7\n")

	w, err := NewWatcher(path, nil, WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "engine:\n  match:\n    threshold: 7.0\n")

	// Give the watcher a few poll cycles to notice the bad file.
	time.Sleep(200 * time.Millisecond)

	if got := w.Current().Engine.Match.Threshold; got != 0.7 {
		t.Errorf("Current threshold = %v, want unchanged 0.7", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("NewWatcher with missing file: want error")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "server:\n  listen_addr: \":0\"\n")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
