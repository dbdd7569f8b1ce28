package config

import (
	"time"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for quoting against given or on-chain reserves.
type QuoteConfig struct {
	RPCURL       string
	Exchange     string
	Block        uint64
	BaseIn       string
	TokenIn      string
	BaseReserve  string
	TokenReserve string
	Check        bool
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"check":         true,
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		RPCURL:       v.GetString("rpc"),
		Exchange:     v.GetString("exchange"),
		Block:        v.GetUint64("block"),
		BaseIn:       v.GetString("base-in"),
		TokenIn:      v.GetString("token-in"),
		BaseReserve:  v.GetString("base-reserve"),
		TokenReserve: v.GetString("token-reserve"),
		Check:        v.GetBool("check"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
