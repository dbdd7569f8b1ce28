package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the HTTP sandbox.
type ServeConfig struct {
	Listen        string
	MetricsListen string
	Genesis       string
	Out           string
	ReadTimeout   time.Duration
	AllowOrigins  []string
	LogLevel      string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"listen":         ":8080",
		"metrics-listen": ":9090",
		"read-timeout":   10 * time.Second,
	})
	if err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Listen:        v.GetString("listen"),
		MetricsListen: v.GetString("metrics-listen"),
		Genesis:       v.GetString("genesis"),
		Out:           v.GetString("out"),
		ReadTimeout:   v.GetDuration("read-timeout"),
		AllowOrigins:  getStringSlice(v, "allow-origins"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
