package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "VIROME"

// Settings are process-level knobs read from VIROME_* environment variables.
// Command-line flags take precedence over them.
type Settings struct {
	MaxJobs              int           `envconfig:"MAX_JOBS" default:"0"`
	GracePeriod          time.Duration `envconfig:"GRACE_PERIOD" default:"30s"`
	KillDelay            time.Duration `envconfig:"KILL_DELAY" default:"5s"`
	Shell                string        `envconfig:"TOOL_SHELL" default:"/bin/sh"`
	ResultsFile          string        `envconfig:"RESULTS_FILE" default:"results.json"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"5s"`
}

// LoadSettings loads envFile into the process environment when set, then
// decodes the VIROME_* variables.
func LoadSettings(envFile string) (Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Settings{}, &Error{Kind: ErrNotFound, Path: envFile, Err: err}
		}
	}

	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, &Error{Kind: ErrInvalidType, Key: EnvPrefix + "_*", Err: err}
	}
	if s.MaxJobs < 0 {
		return Settings{}, &Error{Kind: ErrInvalidType, Key: EnvPrefix + "_MAX_JOBS"}
	}
	return s, nil
}
