package config

import "github.com/spf13/pflag"

// SimulateConfig holds configuration for running a scenario file.
type SimulateConfig struct {
	Scenario string
	Out      string
	Report   string
	PGDSN    string
	Migrate  bool
	LogLevel string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":     "./data/events.jsonl",
		"migrate": false,
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Scenario: v.GetString("scenario"),
		Out:      v.GetString("out"),
		Report:   v.GetString("report"),
		PGDSN:    v.GetString("pg-dsn"),
		Migrate:  v.GetBool("migrate"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
