package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tuptime/tuptime/internal/config"
)

func testPaths(t *testing.T) config.Paths {
	t.Helper()
	t.Setenv(config.EnvDir, t.TempDir())
	p, err := config.DefaultPaths()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultPaths_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvDir, dir)

	p, err := config.DefaultPaths()
	if err != nil {
		t.Fatal(err)
	}
	if p.Dir != dir {
		t.Errorf("expected dir %q, got %q", dir, p.Dir)
	}
	if got := p.Registry(); got != filepath.Join(dir, "config.json") {
		t.Errorf("unexpected registry path %q", got)
	}
	if got := p.Socket(); got != filepath.Join(dir, "daemon.sock") {
		t.Errorf("unexpected socket path %q", got)
	}
}

func TestDefaultPaths_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tuptime")
	t.Setenv(config.EnvDir, dir)

	if _, err := config.DefaultPaths(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	paths := testPaths(t)

	s, err := config.LoadSettings(paths.Settings(), paths)
	if err != nil {
		t.Fatalf("missing settings file must not error: %v", err)
	}
	if s.StopGrace.Duration <= 0 {
		t.Error("expected default stop grace")
	}
	if s.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", s.LogLevel)
	}
	if s.LogFile != paths.LogFile() {
		t.Errorf("expected default log file %q, got %q", paths.LogFile(), s.LogFile)
	}
}

func TestLoadSettings_File(t *testing.T) {
	paths := testPaths(t)
	content := `
probe_timeout: "3s"
stop_grace: "5s"
log_level: "debug"
log_max_size_mb: 2
`
	if err := os.WriteFile(paths.Settings(), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := config.LoadSettings(paths.Settings(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ProbeTimeout.Duration != 3*time.Second {
		t.Errorf("expected probe_timeout 3s, got %v", s.ProbeTimeout.Duration)
	}
	if s.StopGrace.Duration != 5*time.Second {
		t.Errorf("expected stop_grace 5s, got %v", s.StopGrace.Duration)
	}
	if s.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", s.LogLevel)
	}
	if s.LogMaxSizeMB != 2 {
		t.Errorf("expected log_max_size_mb 2, got %d", s.LogMaxSizeMB)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	paths := testPaths(t)
	if err := os.WriteFile(paths.Settings(), []byte("probe_timeout: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.LoadSettings(paths.Settings(), paths); err == nil {
		t.Error("expected error for malformed settings")
	}
}

func TestProbeTimeoutFor(t *testing.T) {
	paths := testPaths(t)
	s, err := config.LoadSettings(paths.Settings(), paths)
	if err != nil {
		t.Fatal(err)
	}

	// Default: min(interval, cap).
	if got := s.ProbeTimeoutFor(3 * time.Second); got != 3*time.Second {
		t.Errorf("short interval: expected 3s, got %v", got)
	}
	if got := s.ProbeTimeoutFor(time.Hour); got != config.DefaultProbeTimeoutCap {
		t.Errorf("long interval: expected cap, got %v", got)
	}

	// Explicit override wins regardless of interval.
	s.ProbeTimeout = config.Duration{Duration: 2 * time.Second}
	if got := s.ProbeTimeoutFor(time.Hour); got != 2*time.Second {
		t.Errorf("override: expected 2s, got %v", got)
	}
}
