package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.ParseTimeout != 25*time.Second {
		t.Errorf("Expected parse timeout 25s, got %s", cfg.ParseTimeout)
	}
	if cfg.ParseIsolation != IsolationProcess {
		t.Errorf("Expected process isolation, got %s", cfg.ParseIsolation)
	}
	if cfg.JPEGQuality != 90 || cfg.OutputDPI != 300 {
		t.Errorf("Expected quality 90 / 300 DPI, got %d / %d", cfg.JPEGQuality, cfg.OutputDPI)
	}
	if cfg.FallbackScalePercent != 70 {
		t.Errorf("Expected fallback scale 70, got %d", cfg.FallbackScalePercent)
	}
	if cfg.CandidateMinArea != 10000 || cfg.CandidateMaxArea != 2000000 {
		t.Errorf("Unexpected candidate area bounds: %d-%d", cfg.CandidateMinArea, cfg.CandidateMaxArea)
	}
	if cfg.CandidateMinAspect != 0.5 || cfg.CandidateMaxAspect != 2.0 {
		t.Errorf("Unexpected candidate aspect bounds: %g-%g", cfg.CandidateMinAspect, cfg.CandidateMaxAspect)
	}
	if cfg.CacheEnabled() {
		t.Error("Expected cache to be disabled without REDIS_ADDR")
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Unexpected server address %s", cfg.ServerAddress())
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PARSE_TIMEOUT", "5s")
	t.Setenv("PARSE_ISOLATION", "InProcess")
	t.Setenv("CANDIDATE_MIN_AREA", "500")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.ParseTimeout != 5*time.Second {
		t.Errorf("Expected 5s parse timeout, got %s", cfg.ParseTimeout)
	}
	if cfg.ParseIsolation != IsolationInProcess {
		t.Errorf("Expected inprocess isolation, got %s", cfg.ParseIsolation)
	}
	if cfg.CandidateMinArea != 500 {
		t.Errorf("Expected min area 500, got %d", cfg.CandidateMinArea)
	}
	if !cfg.CacheEnabled() {
		t.Error("Expected cache to be enabled")
	}
}

func TestLoadFromEnv_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: \"7070\"\nfallback_scale_percent: 60\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Expected port from file, got %s", cfg.Port)
	}
	if cfg.FallbackScalePercent != 60 {
		t.Errorf("Expected scale 60 from file, got %d", cfg.FallbackScalePercent)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Bad port", "PORT", "http"},
		{"Port out of range", "PORT", "70000"},
		{"Unknown isolation", "PARSE_ISOLATION", "container"},
		{"Zero in flight", "MAX_IN_FLIGHT", "0"},
		{"Quality too high", "JPEG_QUALITY", "101"},
		{"Scale zero", "FALLBACK_SCALE_PERCENT", "0"},
		{"Area bounds inverted", "CANDIDATE_MIN_AREA", "3000000"},
		{"Aspect bounds inverted", "CANDIDATE_MIN_ASPECT", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
