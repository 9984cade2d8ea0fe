package model

import "time"

// Bar is a single daily candlestick keyed by trading date (YYYY-MM-DD).
type Bar struct {
	Date   string  `json:"Date"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume float64 `json:"Volume"`
}

// Quote keys shared by all market adapters.
const (
	QuotePrice         = "price"
	QuoteMarketCap     = "market_cap"
	QuoteVolume        = "volume"
	QuotePERatio       = "pe_ratio"
	QuotePriceToBook   = "price_to_book"
	QuoteDividendYield = "dividend_yield"
	QuoteProfitMargin  = "profit_margin"
	QuoteBeta          = "beta"
)

// Quote is a flat map of current-quote metrics.
type Quote map[string]float64

// Has reports whether the metric is present and non-zero.
func (q Quote) Has(key string) bool {
	return q[key] != 0
}

// MarketHistory holds one sub-market's daily bars and quote metrics.
type MarketHistory struct {
	History []Bar `json:"history"`
	Info    Quote `json:"info,omitempty"`
}

// MarketRecord is the persisted market snapshot. Only one provider's
// record is kept per collection run.
type MarketRecord struct {
	USMarket       *MarketHistory `json:"us_market,omitempty"`
	HKMarket       *MarketHistory `json:"hk_market,omitempty"`
	CollectionTime time.Time      `json:"collection_time"`
	DataSource     string         `json:"data_source"`
}

// Markets returns the non-nil sub-markets, US first.
func (r *MarketRecord) Markets() []*MarketHistory {
	var out []*MarketHistory
	if r.USMarket != nil {
		out = append(out, r.USMarket)
	}
	if r.HKMarket != nil {
		out = append(out, r.HKMarket)
	}
	return out
}
