package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"MarketArchive/internal/model"
)

// AlphaVantage implements MarketSource and FinancialSource for the US
// ticker. Calls are spaced by callInterval to respect the free-tier limit.
type AlphaVantage struct {
	BaseURL     string
	APIKey      string
	Symbol      string
	HistoryDays int
	Client      *http.Client
	limiter     *rate.Limiter
}

// NewAlphaVantage creates an Alpha Vantage adapter. A zero callInterval
// disables spacing.
func NewAlphaVantage(baseURL, apiKey, symbol string, historyDays int, callInterval time.Duration, client *http.Client) *AlphaVantage {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if callInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(callInterval), 1)
	}
	return &AlphaVantage{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Symbol:      symbol,
		HistoryDays: historyDays,
		Client:      client,
		limiter:     limiter,
	}
}

func (a *AlphaVantage) Name() string { return "alpha_vantage" }

// avNotice is the error payload Alpha Vantage returns with HTTP 200.
type avNotice struct {
	ErrorMessage string `json:"Error Message"`
	Information  string `json:"Information"`
	Note         string `json:"Note"`
}

func (n avNotice) message() string {
	for _, s := range []string{n.ErrorMessage, n.Information, n.Note} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (a *AlphaVantage) query(ctx context.Context, function string, extra url.Values, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", a.Symbol)
	params.Set("apikey", a.APIKey)
	for k, v := range extra {
		params[k] = v
	}

	body, err := getBody(ctx, a.Client, a.Name(), a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	var notice avNotice
	if json.Unmarshal(body, &notice) == nil {
		if msg := notice.message(); msg != "" {
			return fmt.Errorf("alpha_vantage %s: %s", function, msg)
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("alpha_vantage %s decode: %w", function, err)
	}
	return nil
}

type avDaily struct {
	Series map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

type avGlobalQuote struct {
	Quote struct {
		Price  string `json:"05. price"`
		Volume string `json:"06. volume"`
	} `json:"Global Quote"`
}

// avOverviewQuote maps OVERVIEW fields onto quote keys.
var avOverviewQuote = map[string]string{
	"MarketCapitalization": model.QuoteMarketCap,
	"PERatio":              model.QuotePERatio,
	"PriceToBookRatio":     model.QuotePriceToBook,
	"DividendYield":        model.QuoteDividendYield,
	"ProfitMargin":         model.QuoteProfitMargin,
	"Beta":                 model.QuoteBeta,
}

// FetchMarket returns the newest HistoryDays daily bars, newest first, with
// quote metrics from GLOBAL_QUOTE and OVERVIEW. Only the US market is covered.
func (a *AlphaVantage) FetchMarket(ctx context.Context) (*model.MarketRecord, error) {
	var daily avDaily
	if err := a.query(ctx, "TIME_SERIES_DAILY", url.Values{"outputsize": {"full"}}, &daily); err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(daily.Series))
	for date, v := range daily.Series {
		bar := model.Bar{Date: date}
		var err error
		for _, f := range []struct {
			dst *float64
			src string
		}{{&bar.Open, v.Open}, {&bar.High, v.High}, {&bar.Low, v.Low}, {&bar.Close, v.Close}, {&bar.Volume, v.Volume}} {
			if *f.dst, err = strconv.ParseFloat(f.src, 64); err != nil {
				return nil, fmt.Errorf("alpha_vantage: bad bar %s: %w", date, err)
			}
		}
		bars = append(bars, bar)
	}
	slices.SortFunc(bars, func(x, y model.Bar) int { return strings.Compare(y.Date, x.Date) })
	if a.HistoryDays > 0 && len(bars) > a.HistoryDays {
		bars = bars[:a.HistoryDays]
	}

	info := model.Quote{}
	var gq avGlobalQuote
	if err := a.query(ctx, "GLOBAL_QUOTE", nil, &gq); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[WARN] alpha_vantage: global quote: %v", err)
	} else {
		setQuote(info, model.QuotePrice, gq.Quote.Price)
		setQuote(info, model.QuoteVolume, gq.Quote.Volume)
	}

	var overview map[string]any
	if err := a.query(ctx, "OVERVIEW", nil, &overview); err != nil {
		return nil, err
	}
	for field, key := range avOverviewQuote {
		setQuote(info, key, overview[field])
	}

	return &model.MarketRecord{
		USMarket:       &model.MarketHistory{History: bars, Info: info},
		CollectionTime: time.Now(),
		DataSource:     a.Name(),
	}, nil
}

type avStatements struct {
	AnnualReports    []map[string]any `json:"annualReports"`
	QuarterlyReports []map[string]any `json:"quarterlyReports"`
}

type avEarnings struct {
	QuarterlyEarnings []map[string]any `json:"quarterlyEarnings"`
}

var avStatementFunctions = []struct {
	function string
	typ      model.ReportType
}{
	{"INCOME_STATEMENT", model.IncomeStatement},
	{"BALANCE_SHEET", model.BalanceSheet},
	{"CASH_FLOW", model.CashFlow},
}

// FetchFinancial returns annual and quarterly statements plus reported
// quarterly earnings. Earnings are best effort.
func (a *AlphaVantage) FetchFinancial(ctx context.Context) (*model.FinancialRecord, error) {
	rec := &model.FinancialRecord{
		QuarterlyData:  model.NewStatements(),
		AnnualData:     model.NewStatements(),
		Earnings:       &model.Earnings{Historical: []model.Report{}, Upcoming: []model.Report{}},
		CollectionTime: time.Now(),
		DataSource:     a.Name(),
	}

	for _, fn := range avStatementFunctions {
		var st avStatements
		if err := a.query(ctx, fn.function, nil, &st); err != nil {
			return nil, err
		}
		rec.AnnualData.Set(fn.typ, normalizeReports(st.AnnualReports))
		rec.QuarterlyData.Set(fn.typ, normalizeReports(st.QuarterlyReports))
	}

	var earnings avEarnings
	if err := a.query(ctx, "EARNINGS", nil, &earnings); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[WARN] alpha_vantage: earnings: %v", err)
	} else {
		rec.Earnings.Historical = normalizeReports(earnings.QuarterlyEarnings)
	}
	return rec, nil
}
