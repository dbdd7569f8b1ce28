package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadSimulateMergesEnvAndFlags(t *testing.T) {
	t.Setenv("ZUNISWAP_PG_DSN", "postgres://localhost/zuniswap")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.String("scenario", "", "")
	flags.String("out", "", "")
	if err := flags.Parse([]string{"--scenario", "swap.yaml"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSimulate("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario != "swap.yaml" {
		t.Fatalf("scenario %q", cfg.Scenario)
	}
	if cfg.PGDSN != "postgres://localhost/zuniswap" {
		t.Fatalf("pg dsn %q", cfg.PGDSN)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestLoadServeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.yaml")
	data := "listen: \":7000\"\nallow-origins:\n  - http://a.test\n  - http://b.test\nread-timeout: 3s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServe(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":7000" || cfg.MetricsListen != ":9090" {
		t.Fatalf("listen %q metrics %q", cfg.Listen, cfg.MetricsListen)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "http://b.test" {
		t.Fatalf("allow origins %v", cfg.AllowOrigins)
	}
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("read timeout %v", cfg.ReadTimeout)
	}
}

func TestLoadMissingExplicitConfigFails(t *testing.T) {
	if _, err := LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"1700000000", 1700000000},
		{"2023-11-14T22:13:20Z", 1700000000},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %d want %d", c.in, got, c.want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
