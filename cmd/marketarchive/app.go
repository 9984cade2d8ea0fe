package main

import (
	"fmt"
	"log"
	"net/http"

	"MarketArchive/internal/collector"
	"MarketArchive/internal/config"
	"MarketArchive/internal/notifier"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/scheduler"
	"MarketArchive/internal/store"
)

// app holds the long-lived components shared by the commands.
type app struct {
	cfg      *config.Config
	store    *store.Store
	client   *http.Client
	recorder recorder.Recorder
	notifier notifier.Notifier
	telegram *notifier.TelegramNotifier // nil when Telegram is not configured
}

func newApp(cfg *config.Config) (*app, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		store:  st,
		client: collector.NewHTTPClient(cfg.Proxy, cfg.HTTPTimeout),
	}

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		} else {
			a.recorder = sr
		}
	}

	a.notifier = notifier.Noop{}
	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			collector.NewHTTPClient(cfg.Proxy, 0))
		a.notifier = a.telegram
	}
	return a, nil
}

func (a *app) close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}

// sources builds the provider adapters in configured order. Adapters
// needing an API key are skipped when the key is missing.
func (a *app) sources() ([]collector.MarketSource, []collector.FinancialSource) {
	c := a.cfg
	av := collector.NewAlphaVantage(c.AlphaVantage.BaseURL, c.AlphaVantage.APIKey, c.Subject.Symbol,
		c.Collection.HistoryDays, c.AlphaVantage.CallInterval, a.client)
	yahoo := collector.NewYahoo(c.Yahoo.ChartURL, c.Yahoo.SummaryURL, c.Subject.Symbol, c.Subject.HKSymbol, a.client)

	keyed := func(name, key string) bool {
		if key == "" {
			log.Printf("[WARN] %s skipped: no API key configured", name)
			return false
		}
		return true
	}

	var market []collector.MarketSource
	for _, name := range c.Collection.MarketSources {
		switch name {
		case config.SourceAlphaVantage:
			if keyed(name, c.AlphaVantage.APIKey) {
				market = append(market, av)
			}
		case config.SourceYahoo:
			market = append(market, yahoo)
		case config.SourceYahooWeb:
			market = append(market, collector.NewYahooWeb(c.Yahoo.WebURL, c.Subject.Symbol, c.Subject.HKSymbol,
				c.Collection.HistoryDays, a.client))
		}
	}

	var financial []collector.FinancialSource
	for _, name := range c.Collection.FinancialSources {
		switch name {
		case config.SourceAlphaVantage:
			if keyed(name, c.AlphaVantage.APIKey) {
				financial = append(financial, av)
			}
		case config.SourceYahoo:
			financial = append(financial, yahoo)
		case config.SourceEODHD:
			if keyed(name, c.EODHD.APIKey) {
				financial = append(financial, collector.NewEODHD(c.EODHD.BaseURL, c.EODHD.APIKey, c.Subject.EODHDSymbol, a.client))
			}
		}
	}
	return market, financial
}

func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	c := a.cfg
	market, financial := a.sources()
	if len(market) == 0 || len(financial) == 0 {
		return nil, fmt.Errorf("no usable sources: %d market, %d financial", len(market), len(financial))
	}
	pacer := collector.Pacer{Min: c.Collection.JitterMin, Max: c.Collection.JitterMax}

	return scheduler.NewScheduler(
		collector.NewMarketCollector(a.store, a.recorder, pacer, market...),
		collector.NewFinancialCollector(a.store, a.recorder, pacer, financial...),
		collector.NewNewsCollector(a.store, a.recorder, a.client, c.News.Feeds,
			[]string{c.Subject.Name, c.Subject.Symbol}, c.News.MaxAge, c.News.Limit),
		a.notifier,
		a.recorder,
		c.Subject.Name,
		c.Collection.Interval,
		c.Collection.RetryInterval,
		c.Collection.Cron,
	)
}
