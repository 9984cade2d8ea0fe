package collector

import "MarketArchive/internal/model"

// ValidMarket reports whether a market record is usable: some sub-market
// has a non-empty history and some sub-market quotes a price or market cap.
func ValidMarket(rec *model.MarketRecord) bool {
	if rec == nil {
		return false
	}
	hasHistory, hasQuote := false, false
	for _, m := range rec.Markets() {
		if len(m.History) > 0 {
			hasHistory = true
		}
		if m.Info.Has(model.QuotePrice) || m.Info.Has(model.QuoteMarketCap) {
			hasQuote = true
		}
	}
	return hasHistory && hasQuote
}

// ValidFinancial reports whether any of the six statement sequences is non-empty.
func ValidFinancial(rec *model.FinancialRecord) bool {
	if rec == nil {
		return false
	}
	return !rec.QuarterlyData.Empty() || !rec.AnnualData.Empty()
}
