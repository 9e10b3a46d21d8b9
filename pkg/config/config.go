// Package config loads engine configuration via viper, following the
// teacher's cmd/kodelet/main.go convention: SetDefault for every
// tunable, CTXENGINE_-prefixed environment override, and an optional
// YAML file at $HOME/.ctxengine/config.yaml or ./config.yaml.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ctxengine/ctxengine/pkg/compression"
	"github.com/ctxengine/ctxengine/pkg/orchestrator"
	"github.com/ctxengine/ctxengine/pkg/sizing"
)

// Config is the fully-resolved, typed configuration for one engine
// instance, assembled from the sub-configs each component already
// defines.
type Config struct {
	StorageRoot string

	Orchestrator orchestrator.Config
	Compression  compression.Config
	Sizing       SizingConfig

	LogLevel  string
	LogFormat string

	TracingEnabled bool
}

// SizingConfig holds the VRAM-monitor and window-sizing tunables, kept
// here rather than in pkg/sizing so that package stays free of a viper
// dependency. pkg/sizing has its own fallbacks for the multiplier and
// thresholds; the poll schedule is defaulted only here, in Load.
type SizingConfig struct {
	OverheadMultiplier float64
	PollSchedule       string // 6-field cron expression with a leading seconds field
	LowFreeRatio       float64
	CriticalFreeRatio  float64
}

// Load reads defaults, an optional config file, and CTXENGINE_-prefixed
// environment variables into a Config.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("storage_root", "")

	v.SetDefault("orchestrator.trigger_ratio", orchestrator.DefaultConfig().TriggerRatio)
	v.SetDefault("orchestrator.reserve_tokens", orchestrator.DefaultConfig().ReserveTokens)
	v.SetDefault("orchestrator.max_compaction_attempts_per_turn", orchestrator.DefaultConfig().MaxCompactionAttemptsPerTurn)

	defaultCompression := compression.DefaultConfig()
	v.SetDefault("compression.keep_recent", defaultCompression.KeepRecent)
	v.SetDefault("compression.t1_turns", defaultCompression.T1Turns)
	v.SetDefault("compression.t2_turns", defaultCompression.T2Turns)
	v.SetDefault("compression.retry_attempts", defaultCompression.RetryAttempts)
	v.SetDefault("compression.retry_initial_delay", defaultCompression.RetryInitialDelay.String())
	v.SetDefault("compression.retry_max_delay", defaultCompression.RetryMaxDelay.String())

	v.SetDefault("sizing.overhead_multiplier", sizing.DefaultOverheadMultiplier)
	v.SetDefault("sizing.poll_schedule", "*/30 * * * * *")
	v.SetDefault("sizing.low_free_ratio", sizing.DefaultLowFreeRatio)
	v.SetDefault("sizing.critical_free_ratio", sizing.DefaultCriticalFreeRatio)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("tracing_enabled", false)

	v.SetEnvPrefix("CTXENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.ctxengine")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, errors.Wrap(err, "read config file")
		}
	}

	retryInitialDelay, err := time.ParseDuration(v.GetString("compression.retry_initial_delay"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parse compression.retry_initial_delay")
	}
	retryMaxDelay, err := time.ParseDuration(v.GetString("compression.retry_max_delay"))
	if err != nil {
		return Config{}, errors.Wrap(err, "parse compression.retry_max_delay")
	}

	return Config{
		StorageRoot: v.GetString("storage_root"),
		Orchestrator: orchestrator.Config{
			TriggerRatio:                 v.GetFloat64("orchestrator.trigger_ratio"),
			ReserveTokens:                v.GetInt("orchestrator.reserve_tokens"),
			MaxCompactionAttemptsPerTurn: v.GetInt("orchestrator.max_compaction_attempts_per_turn"),
		},
		Compression: compression.Config{
			KeepRecent:        v.GetInt("compression.keep_recent"),
			T1Turns:           v.GetInt("compression.t1_turns"),
			T2Turns:           v.GetInt("compression.t2_turns"),
			RetryAttempts:     uint(v.GetUint("compression.retry_attempts")),
			RetryInitialDelay: retryInitialDelay,
			RetryMaxDelay:     retryMaxDelay,
		},
		Sizing: SizingConfig{
			OverheadMultiplier: v.GetFloat64("sizing.overhead_multiplier"),
			PollSchedule:       v.GetString("sizing.poll_schedule"),
			LowFreeRatio:       v.GetFloat64("sizing.low_free_ratio"),
			CriticalFreeRatio:  v.GetFloat64("sizing.critical_free_ratio"),
		},
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		TracingEnabled: v.GetBool("tracing_enabled"),
	}, nil
}
