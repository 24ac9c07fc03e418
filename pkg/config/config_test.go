package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail without DATABASE_URL")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://tapewatch:pw@localhost:5432/tapewatch")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8094" {
		t.Errorf("Port = %s, want 8094", cfg.Port)
	}
	if cfg.Polygon.MaxStaleness != 10*time.Second {
		t.Errorf("Polygon.MaxStaleness = %v, want 10s", cfg.Polygon.MaxStaleness)
	}
	if cfg.Tiingo.RatePerSec != 5.0 {
		t.Errorf("Tiingo.RatePerSec = %v, want 5.0", cfg.Tiingo.RatePerSec)
	}
	if !cfg.Monitor.ArchiveEnabled {
		t.Error("Monitor.ArchiveEnabled should default to true")
	}
}

func TestLoad_RejectsUnknownEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tapewatch")
	t.Setenv("ENV", "sandbox")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should reject unknown ENV")
	}
}

func TestGetEnvAsDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")

	got := getEnvAsDuration("SOME_DURATION", "15s")
	if got != 15*time.Second {
		t.Errorf("getEnvAsDuration = %v, want 15s", got)
	}
}
