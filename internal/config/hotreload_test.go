package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateline.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: 15s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	got := make(chan Config, 4)
	w.OnChange(func(cfg Config) { got <- cfg })
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("poll_interval: 45s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.PollInterval.Std() != 45*time.Second {
			t.Errorf("PollInterval = %v, want 45s", cfg.PollInterval.Std())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change never observed")
	}
}

func TestWatcher_KeepsPreviousOnMalformedReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateline.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: 15s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Stop()

	fired := make(chan struct{}, 4)
	w.OnChange(func(Config) { fired <- struct{}{} })
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.WriteFile(path, []byte("poll_interval: [unbalanced"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Error("handlers must not run for a malformed file")
	case <-time.After(time.Second):
	}
}
