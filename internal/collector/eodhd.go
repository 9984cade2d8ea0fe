package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"MarketArchive/internal/model"
)

// eodhdRateLimit is the request rate allowed against the EODHD API.
const eodhdRateLimit = 10

// EODHD implements FinancialSource over the EODHD fundamentals endpoint.
type EODHD struct {
	BaseURL string
	APIKey  string
	Symbol  string // TICKER.EXCHANGE, e.g. BABA.US
	Client  *http.Client
	limiter *rate.Limiter
}

// NewEODHD creates an EODHD adapter.
func NewEODHD(baseURL, apiKey, symbol string, client *http.Client) *EODHD {
	return &EODHD{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Symbol:  symbol,
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(eodhdRateLimit), eodhdRateLimit),
	}
}

func (e *EODHD) Name() string { return "eodhd" }

type eodhdStatement struct {
	Quarterly map[string]map[string]any `json:"quarterly"`
	Yearly    map[string]map[string]any `json:"yearly"`
}

type eodhdFundamentals struct {
	Highlights map[string]any `json:"Highlights"`
	Valuation  map[string]any `json:"Valuation"`
	Earnings   *struct {
		History map[string]map[string]any `json:"History"`
	} `json:"Earnings"`
	Financials *struct {
		BalanceSheet    *eodhdStatement `json:"Balance_Sheet"`
		CashFlow        *eodhdStatement `json:"Cash_Flow"`
		IncomeStatement *eodhdStatement `json:"Income_Statement"`
	} `json:"Financials"`
}

// FetchFinancial returns statements, earnings history and highlight
// metrics. Entries are keyed by their period end date.
func (e *EODHD) FetchFinancial(ctx context.Context) (*model.FinancialRecord, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api_token", e.APIKey)
	params.Set("fmt", "json")
	u := fmt.Sprintf("%s/fundamentals/%s?%s", e.BaseURL, url.PathEscape(e.Symbol), params.Encode())

	var f eodhdFundamentals
	if err := getJSON(ctx, e.Client, e.Name(), u, &f); err != nil {
		return nil, err
	}

	rec := &model.FinancialRecord{
		QuarterlyData:  model.NewStatements(),
		AnnualData:     model.NewStatements(),
		Earnings:       &model.Earnings{Historical: []model.Report{}, Upcoming: []model.Report{}},
		KeyMetrics:     map[string]any{},
		CollectionTime: time.Now(),
		DataSource:     e.Name(),
	}

	if f.Financials != nil {
		for _, s := range []struct {
			typ model.ReportType
			st  *eodhdStatement
		}{
			{model.IncomeStatement, f.Financials.IncomeStatement},
			{model.BalanceSheet, f.Financials.BalanceSheet},
			{model.CashFlow, f.Financials.CashFlow},
		} {
			if s.st == nil {
				continue
			}
			rec.QuarterlyData.Set(s.typ, eodhdReports(s.st.Quarterly))
			rec.AnnualData.Set(s.typ, eodhdReports(s.st.Yearly))
		}
	}

	if f.Earnings != nil {
		today := time.Now().Format(time.DateOnly)
		for _, r := range eodhdReports(f.Earnings.History) {
			reported, _ := r["reportDate"].(string)
			if r["epsActual"] == nil && reported >= today {
				rec.Earnings.Upcoming = append(rec.Earnings.Upcoming, r)
			} else {
				rec.Earnings.Historical = append(rec.Earnings.Historical, r)
			}
		}
	}

	for _, m := range []map[string]any{f.Highlights, f.Valuation} {
		for k, v := range m {
			if n, ok := normalizeValue(v).(float64); ok {
				rec.KeyMetrics[k] = n
			}
		}
	}
	return rec, nil
}

// eodhdReports converts a date-keyed statement map into reports with
// fiscalDateEnding set from the entry's date, or the map key without one,
// newest first.
func eodhdReports(entries map[string]map[string]any) []model.Report {
	out := make([]model.Report, 0, len(entries))
	for key, raw := range entries {
		r := normalizeReport(raw)
		date, _ := r["date"].(string)
		if date == "" {
			date = key
		}
		r[model.KeyFiscalDateEnding] = date
		delete(r, "date")
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Report) int {
		return strings.Compare(b.FiscalDate(), a.FiscalDate())
	})
	return out
}
