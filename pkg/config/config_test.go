package config

import (
	"testing"

	"github.com/ctxengine/ctxengine/pkg/compression"
	"github.com/ctxengine/ctxengine/pkg/orchestrator"
	"github.com/ctxengine/ctxengine/pkg/sizing"
)

func TestLoadAppliesDefaultsWithNoOverrides(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := orchestrator.DefaultConfig()
	if cfg.Orchestrator != want {
		t.Errorf("Orchestrator = %+v, want defaults %+v", cfg.Orchestrator, want)
	}

	wantCompression := compression.DefaultConfig()
	if cfg.Compression.KeepRecent != wantCompression.KeepRecent ||
		cfg.Compression.T1Turns != wantCompression.T1Turns ||
		cfg.Compression.T2Turns != wantCompression.T2Turns {
		t.Errorf("Compression = %+v, want defaults %+v", cfg.Compression, wantCompression)
	}

	if cfg.Sizing.OverheadMultiplier != sizing.DefaultOverheadMultiplier {
		t.Errorf("Sizing.OverheadMultiplier = %v, want %v", cfg.Sizing.OverheadMultiplier, sizing.DefaultOverheadMultiplier)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "fmt" {
		t.Errorf("LogFormat = %q, want fmt", cfg.LogFormat)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("CTXENGINE_LOG_LEVEL", "debug")
	t.Setenv("CTXENGINE_ORCHESTRATOR_TRIGGER_RATIO", "0.5")
	t.Setenv("CTXENGINE_COMPRESSION_KEEP_RECENT", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Orchestrator.TriggerRatio != 0.5 {
		t.Errorf("TriggerRatio = %v, want 0.5", cfg.Orchestrator.TriggerRatio)
	}
	if cfg.Compression.KeepRecent != 10 {
		t.Errorf("KeepRecent = %d, want 10", cfg.Compression.KeepRecent)
	}
}

func TestLoadParsesRetryDurations(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := compression.DefaultConfig()
	if cfg.Compression.RetryInitialDelay != want.RetryInitialDelay {
		t.Errorf("RetryInitialDelay = %v, want %v", cfg.Compression.RetryInitialDelay, want.RetryInitialDelay)
	}
	if cfg.Compression.RetryMaxDelay != want.RetryMaxDelay {
		t.Errorf("RetryMaxDelay = %v, want %v", cfg.Compression.RetryMaxDelay, want.RetryMaxDelay)
	}
}
