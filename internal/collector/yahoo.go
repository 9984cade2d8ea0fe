package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"MarketArchive/internal/model"
)

// Yahoo implements MarketSource over the public chart API and
// FinancialSource over quoteSummary.
type Yahoo struct {
	ChartURL   string
	SummaryURL string
	Symbol     string
	HKSymbol   string
	Client     *http.Client
}

// NewYahoo creates a Yahoo Finance adapter for the US and HK tickers.
func NewYahoo(chartURL, summaryURL, symbol, hkSymbol string, client *http.Client) *Yahoo {
	return &Yahoo{
		ChartURL:   chartURL,
		SummaryURL: summaryURL,
		Symbol:     symbol,
		HKSymbol:   hkSymbol,
		Client:     client,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
				ExchangeTimezone    string  `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

// fetchMarket returns one ticker's daily bars for the past year, newest
// first, and its quote metrics.
func (y *Yahoo) fetchMarket(ctx context.Context, symbol string) (*model.MarketHistory, error) {
	u := fmt.Sprintf("%s/%s?interval=1d&range=1y", y.ChartURL, url.PathEscape(symbol))

	var chart yahooChart
	if err := getJSON(ctx, y.Client, y.Name(), u, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned for %s", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote series for %s", symbol)
	}
	quote := result.Indicators.Quote[0]
	loc := time.UTC
	if result.Meta.ExchangeTimezone != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezone); err == nil {
			loc = l
		}
	}

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := at(quote.Open, i)
		h := at(quote.High, i)
		l := at(quote.Low, i)
		c := at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.Bar{
			Date:   time.Unix(ts, 0).In(loc).Format(time.DateOnly),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	slices.SortFunc(bars, func(a, b model.Bar) int { return strings.Compare(b.Date, a.Date) })

	info := model.Quote{}
	setQuote(info, model.QuotePrice, result.Meta.RegularMarketPrice)
	setQuote(info, model.QuoteVolume, result.Meta.RegularMarketVolume)
	if err := y.fetchSummaryDetail(ctx, symbol, info); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[WARN] yahoo: summary detail %s: %v", symbol, err)
	}
	return &model.MarketHistory{History: bars, Info: info}, nil
}

// yahooSummaryQuote maps summaryDetail / defaultKeyStatistics fields onto quote keys.
var yahooSummaryQuote = map[string]string{
	"marketCap":     model.QuoteMarketCap,
	"trailingPE":    model.QuotePERatio,
	"priceToBook":   model.QuotePriceToBook,
	"dividendYield": model.QuoteDividendYield,
	"profitMargins": model.QuoteProfitMargin,
	"beta":          model.QuoteBeta,
}

func (y *Yahoo) fetchSummaryDetail(ctx context.Context, symbol string, info model.Quote) error {
	res, err := y.quoteSummary(ctx, symbol, "summaryDetail", "defaultKeyStatistics")
	if err != nil {
		return err
	}
	for _, module := range []string{"summaryDetail", "defaultKeyStatistics"} {
		flat := flattenYahoo(res[module])
		for field, key := range yahooSummaryQuote {
			if _, done := info[key]; !done {
				setQuote(info, key, flat[field])
			}
		}
	}
	return nil
}

// FetchMarket returns the US market and, best effort, the HK market.
func (y *Yahoo) FetchMarket(ctx context.Context) (*model.MarketRecord, error) {
	us, err := y.fetchMarket(ctx, y.Symbol)
	if err != nil {
		return nil, err
	}
	rec := &model.MarketRecord{
		USMarket:       us,
		CollectionTime: time.Now(),
		DataSource:     y.Name(),
	}
	if y.HKSymbol != "" {
		hk, err := y.fetchMarket(ctx, y.HKSymbol)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Printf("[WARN] yahoo: hk market %s: %v", y.HKSymbol, err)
		default:
			rec.HKMarket = hk
		}
	}
	return rec, nil
}

type yahooSummary struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *yahooError                  `json:"error"`
	} `json:"quoteSummary"`
}

// quoteSummary returns the requested modules of the first result, keyed by
// module name.
func (y *Yahoo) quoteSummary(ctx context.Context, symbol string, modules ...string) (map[string]json.RawMessage, error) {
	u := fmt.Sprintf("%s/%s?modules=%s", y.SummaryURL, url.PathEscape(symbol), url.QueryEscape(strings.Join(modules, ",")))

	var summary yahooSummary
	if err := getJSON(ctx, y.Client, y.Name(), u, &summary); err != nil {
		return nil, err
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no summary returned for %s", symbol)
	}
	return summary.QuoteSummary.Result[0], nil
}

// yahooValue is Yahoo's formatted number: {"raw": 1.5, "fmt": "1.50"}.
type yahooValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

// flattenYahoo turns a module object into plain values. Formatted numbers
// become their raw value, date fields keep their formatted text, empty
// objects become nil and nested containers are skipped.
func flattenYahoo(raw json.RawMessage) model.Report {
	var obj map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil {
		return model.Report{}
	}
	out := make(model.Report, len(obj))
	for k, v := range obj {
		if k == "maxAge" {
			continue
		}
		if val, ok := yahooScalar(k, v); ok {
			out[k] = val
		}
	}
	return out
}

func yahooScalar(key string, v json.RawMessage) (any, bool) {
	var plain any
	if err := json.Unmarshal(v, &plain); err != nil {
		return nil, false
	}
	switch p := plain.(type) {
	case map[string]any:
		var yv yahooValue
		if json.Unmarshal(v, &yv) != nil {
			return nil, false
		}
		isDate := strings.HasSuffix(strings.ToLower(key), "date")
		switch {
		case isDate && yv.Fmt != "":
			return yv.Fmt, true
		case yv.Raw != nil:
			return *yv.Raw, true
		case yv.Fmt != "":
			return yv.Fmt, true
		case len(p) == 0:
			return nil, true
		}
		return nil, false
	case []any:
		return nil, false
	default:
		return p, true
	}
}

// Statement module names and the array key holding their entries.
var yahooStatementModules = []struct {
	module string
	list   string
	typ    model.ReportType
	gran   model.Granularity
}{
	{"incomeStatementHistory", "incomeStatementHistory", model.IncomeStatement, model.Annual},
	{"incomeStatementHistoryQuarterly", "incomeStatementHistory", model.IncomeStatement, model.Quarterly},
	{"balanceSheetHistory", "balanceSheetStatements", model.BalanceSheet, model.Annual},
	{"balanceSheetHistoryQuarterly", "balanceSheetStatements", model.BalanceSheet, model.Quarterly},
	{"cashflowStatementHistory", "cashflowStatements", model.CashFlow, model.Annual},
	{"cashflowStatementHistoryQuarterly", "cashflowStatements", model.CashFlow, model.Quarterly},
}

var yahooMetricModules = []string{"defaultKeyStatistics", "financialData", "summaryDetail"}

// FetchFinancial returns statements, earnings and key statistics for the
// US ticker. Statement entries are keyed by their endDate.
func (y *Yahoo) FetchFinancial(ctx context.Context) (*model.FinancialRecord, error) {
	modules := []string{"earnings", "calendarEvents"}
	for _, m := range yahooStatementModules {
		modules = append(modules, m.module)
	}
	modules = append(modules, yahooMetricModules...)

	res, err := y.quoteSummary(ctx, y.Symbol, modules...)
	if err != nil {
		return nil, err
	}

	rec := &model.FinancialRecord{
		QuarterlyData:  model.NewStatements(),
		AnnualData:     model.NewStatements(),
		Earnings:       &model.Earnings{Historical: []model.Report{}, Upcoming: []model.Report{}},
		KeyMetrics:     map[string]any{},
		CollectionTime: time.Now(),
		DataSource:     y.Name(),
	}

	for _, m := range yahooStatementModules {
		var container map[string][]json.RawMessage
		if len(res[m.module]) == 0 || json.Unmarshal(res[m.module], &container) != nil {
			continue
		}
		reports := make([]model.Report, 0, len(container[m.list]))
		for _, entry := range container[m.list] {
			r := flattenYahoo(entry)
			if end, ok := r["endDate"].(string); ok {
				r[model.KeyFiscalDateEnding] = end
				delete(r, "endDate")
			}
			reports = append(reports, r)
		}
		rec.Period(m.gran).Set(m.typ, reports)
	}

	rec.Earnings.Historical = yahooEarningsHistory(res["earnings"])
	rec.Earnings.Upcoming = yahooUpcomingEarnings(res["calendarEvents"])

	for _, module := range yahooMetricModules {
		for k, v := range flattenYahoo(res[module]) {
			if _, ok := v.(float64); ok {
				rec.KeyMetrics[k] = v
			}
		}
	}
	return rec, nil
}

func yahooEarningsHistory(raw json.RawMessage) []model.Report {
	var earnings struct {
		EarningsChart struct {
			Quarterly []json.RawMessage `json:"quarterly"`
		} `json:"earningsChart"`
	}
	out := []model.Report{}
	if len(raw) == 0 || json.Unmarshal(raw, &earnings) != nil {
		return out
	}
	for _, q := range earnings.EarningsChart.Quarterly {
		out = append(out, flattenYahoo(q))
	}
	return out
}

func yahooUpcomingEarnings(raw json.RawMessage) []model.Report {
	var cal struct {
		Earnings map[string]json.RawMessage `json:"earnings"`
	}
	out := []model.Report{}
	if len(raw) == 0 || json.Unmarshal(raw, &cal) != nil || cal.Earnings == nil {
		return out
	}

	var dates []yahooValue
	_ = json.Unmarshal(cal.Earnings["earningsDate"], &dates)
	for _, d := range dates {
		r := model.Report{"earningsDate": d.Fmt}
		for k, v := range cal.Earnings {
			if k == "earningsDate" {
				continue
			}
			if val, ok := yahooScalar(k, v); ok {
				r[k] = val
			}
		}
		out = append(out, r)
	}
	return out
}
