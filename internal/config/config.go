package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source names accepted in collection.market_sources / financial_sources.
const (
	SourceAlphaVantage = "alpha_vantage"
	SourceYahoo        = "yahoo"
	SourceYahooWeb     = "yahoo_web"
	SourceEODHD        = "eodhd"
)

// Config holds all application configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`
	Subject struct {
		Symbol      string `yaml:"symbol"`
		HKSymbol    string `yaml:"hk_symbol"`
		EODHDSymbol string `yaml:"eodhd_symbol"`
		Name        string `yaml:"name"`
	} `yaml:"subject"`
	Proxy       string        `yaml:"proxy"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	AlphaVantage struct {
		APIKey       string        `yaml:"api_key"`
		BaseURL      string        `yaml:"base_url"`
		CallInterval time.Duration `yaml:"call_interval"`
	} `yaml:"alpha_vantage"`
	Yahoo struct {
		ChartURL   string `yaml:"chart_url"`
		SummaryURL string `yaml:"summary_url"`
		WebURL     string `yaml:"web_url"`
	} `yaml:"yahoo"`
	EODHD struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"eodhd"`
	Collection struct {
		Interval         time.Duration `yaml:"interval"`
		RetryInterval    time.Duration `yaml:"retry_interval"`
		Cron             string        `yaml:"cron"`
		JitterMin        time.Duration `yaml:"jitter_min"`
		JitterMax        time.Duration `yaml:"jitter_max"`
		HistoryDays      int           `yaml:"history_days"`
		MarketSources    []string      `yaml:"market_sources"`
		FinancialSources []string      `yaml:"financial_sources"`
	} `yaml:"collection"`
	News struct {
		Feeds  []string      `yaml:"feeds"`
		MaxAge time.Duration `yaml:"max_age"`
		Limit  int           `yaml:"limit"`
	} `yaml:"news"`
	API struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"api"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and environment are used instead.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Seeded before parsing so an explicit 0s in the file disables jitter.
	cfg.Collection.JitterMin = time.Second
	cfg.Collection.JitterMax = 3 * time.Second

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		c.EODHD.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("STOCK_SYMBOL"); v != "" {
		c.Subject.Symbol = v
	}
	if v := os.Getenv("HK_STOCK_SYMBOL"); v != "" {
		c.Subject.HKSymbol = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("COLLECT_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("COLLECT_INTERVAL: %w", err)
		}
		c.Collection.Interval = d
	}
	if v := os.Getenv("COLLECT_CRON"); v != "" {
		c.Collection.Cron = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	return nil
}

// parseInterval accepts a Go duration ("24h") or a bare number of hours ("24").
func parseInterval(v string) (time.Duration, error) {
	if hours, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(hours * float64(time.Hour)), nil
	}
	return time.ParseDuration(v)
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Subject.Symbol == "" {
		c.Subject.Symbol = "BABA"
	}
	if c.Subject.HKSymbol == "" {
		c.Subject.HKSymbol = "9988.HK"
	}
	if c.Subject.EODHDSymbol == "" {
		c.Subject.EODHDSymbol = c.Subject.Symbol + ".US"
	}
	if c.Subject.Name == "" {
		c.Subject.Name = "Alibaba"
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.AlphaVantage.BaseURL == "" {
		c.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if c.AlphaVantage.CallInterval == 0 {
		c.AlphaVantage.CallInterval = 12 * time.Second
	}
	if c.Yahoo.ChartURL == "" {
		c.Yahoo.ChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	if c.Yahoo.SummaryURL == "" {
		c.Yahoo.SummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary"
	}
	if c.Yahoo.WebURL == "" {
		c.Yahoo.WebURL = "https://finance.yahoo.com/quote"
	}
	if c.EODHD.BaseURL == "" {
		c.EODHD.BaseURL = "https://eodhd.com/api"
	}
	if c.Collection.Interval == 0 {
		c.Collection.Interval = 24 * time.Hour
	}
	if c.Collection.RetryInterval == 0 {
		c.Collection.RetryInterval = time.Hour
	}
	if c.Collection.HistoryDays == 0 {
		c.Collection.HistoryDays = 365
	}
	if len(c.Collection.MarketSources) == 0 {
		c.Collection.MarketSources = []string{SourceAlphaVantage, SourceYahoo, SourceYahooWeb}
	}
	if len(c.Collection.FinancialSources) == 0 {
		c.Collection.FinancialSources = []string{SourceAlphaVantage, SourceYahoo, SourceEODHD}
	}
	if c.News.MaxAge == 0 {
		c.News.MaxAge = 30 * 24 * time.Hour
	}
	if c.News.Limit == 0 {
		c.News.Limit = 50
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8000"
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/collection_runs.db"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Subject.Symbol == "" {
		return fmt.Errorf("subject.symbol is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	if c.Collection.Interval <= 0 {
		return fmt.Errorf("collection.interval must be positive")
	}
	if c.Collection.RetryInterval <= 0 {
		return fmt.Errorf("collection.retry_interval must be positive")
	}
	if c.Collection.JitterMin < 0 || c.Collection.JitterMax < c.Collection.JitterMin {
		return fmt.Errorf("collection.jitter_min must be >= 0 and <= jitter_max")
	}
	if c.Collection.HistoryDays <= 0 {
		return fmt.Errorf("collection.history_days must be positive")
	}
	if err := checkSources("collection.market_sources", c.Collection.MarketSources,
		SourceAlphaVantage, SourceYahoo, SourceYahooWeb); err != nil {
		return err
	}
	if err := checkSources("collection.financial_sources", c.Collection.FinancialSources,
		SourceAlphaVantage, SourceYahoo, SourceEODHD); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

func checkSources(field string, names []string, allowed ...string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		ok := false
		for _, a := range allowed {
			if n == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: unknown source %q (allowed: %s)", field, n, strings.Join(allowed, ", "))
		}
		if seen[n] {
			return fmt.Errorf("%s: duplicate source %q", field, n)
		}
		seen[n] = true
	}
	return nil
}
