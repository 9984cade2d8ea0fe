package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Subject.Symbol != "BABA" || cfg.Subject.HKSymbol != "9988.HK" {
		t.Errorf("unexpected subject defaults: %+v", cfg.Subject)
	}
	if cfg.Subject.EODHDSymbol != "BABA.US" {
		t.Errorf("expected derived EODHD symbol, got %q", cfg.Subject.EODHDSymbol)
	}
	if cfg.Collection.Interval != 24*time.Hour || cfg.Collection.RetryInterval != time.Hour {
		t.Errorf("unexpected intervals: %v / %v", cfg.Collection.Interval, cfg.Collection.RetryInterval)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.AlphaVantage.CallInterval != 12*time.Second {
		t.Errorf("expected 12s call interval, got %v", cfg.AlphaVantage.CallInterval)
	}
	if got := strings.Join(cfg.Collection.FinancialSources, ","); got != "alpha_vantage,yahoo,eodhd" {
		t.Errorf("unexpected financial sources: %s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/data
subject:
  symbol: AAPL
collection:
  interval: 6h
  jitter_min: 0s
  jitter_max: 500ms
  market_sources: [yahoo]
`)
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av-key")
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")
	t.Setenv("COLLECT_INTERVAL", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/data" || cfg.Subject.Symbol != "AAPL" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.AlphaVantage.APIKey != "av-key" || cfg.Proxy != "http://proxy:3128" {
		t.Errorf("env values not applied: key=%q proxy=%q", cfg.AlphaVantage.APIKey, cfg.Proxy)
	}
	if cfg.Collection.Interval != 12*time.Hour {
		t.Errorf("expected env interval 12h, got %v", cfg.Collection.Interval)
	}
	if cfg.Collection.JitterMax != 500*time.Millisecond {
		t.Errorf("expected jitter max 500ms, got %v", cfg.Collection.JitterMax)
	}
	if len(cfg.Collection.MarketSources) != 1 || cfg.Collection.MarketSources[0] != SourceYahoo {
		t.Errorf("expected market sources [yahoo], got %v", cfg.Collection.MarketSources)
	}
}

func TestLoad_JitterCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
collection:
  jitter_min: 0s
  jitter_max: 0s
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Collection.JitterMin != 0 || cfg.Collection.JitterMax != 0 {
		t.Errorf("expected jitter disabled, got %v-%v", cfg.Collection.JitterMin, cfg.Collection.JitterMax)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero jitter should validate: %v", err)
	}

	def, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if def.Collection.JitterMin != time.Second || def.Collection.JitterMax != 3*time.Second {
		t.Errorf("expected 1s-3s default jitter, got %v-%v", def.Collection.JitterMin, def.Collection.JitterMax)
	}
}

func TestLoad_BadInterval(t *testing.T) {
	t.Setenv("COLLECT_INTERVAL", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for unparsable COLLECT_INTERVAL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Collection.MarketSources = []string{"bloomberg"} }, "unknown source"},
		{"duplicate source", func(c *Config) { c.Collection.FinancialSources = []string{"yahoo", "yahoo"} }, "duplicate"},
		{"web source for financials", func(c *Config) { c.Collection.FinancialSources = []string{"yahoo_web"} }, "unknown source"},
		{"jitter inverted", func(c *Config) { c.Collection.JitterMin = 5 * time.Second }, "jitter"},
		{"telegram half set", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram"},
		{"no symbol", func(c *Config) { c.Subject.Symbol = "" }, "subject.symbol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
