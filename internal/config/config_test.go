package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.SpacingSeconds != 120 {
		t.Errorf("spacing = %d, want default 120", cfg.Scheduler.SpacingSeconds)
	}
	if cfg.Separation.HorizontalNM != 3.0 {
		t.Errorf("horizontal minimum = %.1f, want default 3.0", cfg.Separation.HorizontalNM)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090

[scheduler]
spacing_seconds = 90
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scheduler.SpacingSeconds != 90 {
		t.Errorf("spacing = %d, want 90", cfg.Scheduler.SpacingSeconds)
	}
	// untouched sections keep their defaults
	if cfg.Profile.FinalAltitudeFt != 2000 {
		t.Errorf("final altitude = %.0f, want default 2000", cfg.Profile.FinalAltitudeFt)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero prediction step", "[prediction]\nstep_seconds = 0\n"},
		{"horizon under step", "[prediction]\nhorizon_seconds = 10\nstep_seconds = 30\n"},
		{"zero spacing", "[scheduler]\nspacing_seconds = 0\n"},
		{"ingest without interval", "[ingest]\nurl = \"http://feed\"\ninterval_seconds = 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
