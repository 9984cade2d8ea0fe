package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"MarketArchive/internal/model"
)

const avDailyJSON = `{
  "Meta Data": {"2. Symbol": "BABA"},
  "Time Series (Daily)": {
    "2024-01-03": {"1. open": "74.0", "2. high": "75.5", "3. low": "73.2", "4. close": "75.1", "5. volume": "1200"},
    "2024-01-02": {"1. open": "73.0", "2. high": "74.5", "3. low": "72.2", "4. close": "74.1", "5. volume": "1100"},
    "2024-01-04": {"1. open": "75.0", "2. high": "76.5", "3. low": "74.2", "4. close": "76.1", "5. volume": "1300"}
  }
}`

const avStatementJSON = `{
  "symbol": "BABA",
  "annualReports": [{"fiscalDateEnding": "2023-03-31", "reportedCurrency": "CNY", "totalRevenue": "868687000000", "netIncome": "None"}],
  "quarterlyReports": [{"fiscalDateEnding": "2023-12-31", "reportedCurrency": "CNY", "totalRevenue": "260348000000"}]
}`

func newAVServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "demo" || q.Get("symbol") != "BABA" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fn := q.Get("function")
		calls = append(calls, fn)
		body, ok := responses[fn]
		if !ok {
			http.Error(w, "unknown function", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAlphaVantage_FetchMarket(t *testing.T) {
	srv, _ := newAVServer(t, map[string]string{
		"TIME_SERIES_DAILY": avDailyJSON,
		"GLOBAL_QUOTE":      `{"Global Quote": {"01. symbol": "BABA", "05. price": "76.10", "06. volume": "1300"}}`,
		"OVERVIEW":          `{"Symbol": "BABA", "MarketCapitalization": "190000000000", "PERatio": "12.5", "Beta": "None"}`,
	})

	av := NewAlphaVantage(srv.URL, "demo", "BABA", 2, 0, srv.Client())
	rec, err := av.FetchMarket(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !ValidMarket(rec) {
		t.Fatal("expected a valid record")
	}
	hist := rec.USMarket.History
	if len(hist) != 2 {
		t.Fatalf("expected history trimmed to 2 bars, got %d", len(hist))
	}
	if hist[0].Date != "2024-01-04" || hist[1].Date != "2024-01-03" {
		t.Errorf("expected newest bars first, got %s, %s", hist[0].Date, hist[1].Date)
	}
	if hist[0].Close != 76.1 || hist[0].Volume != 1300 {
		t.Errorf("unexpected bar %+v", hist[0])
	}
	info := rec.USMarket.Info
	if info[model.QuotePrice] != 76.1 || info[model.QuoteMarketCap] != 1.9e11 || info[model.QuotePERatio] != 12.5 {
		t.Errorf("unexpected quote %v", info)
	}
	if _, ok := info[model.QuoteBeta]; ok {
		t.Errorf("expected None beta to be omitted, got %v", info[model.QuoteBeta])
	}
	if rec.HKMarket != nil || rec.DataSource != "alpha_vantage" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestAlphaVantage_ErrorPayloadIsFailure(t *testing.T) {
	for _, body := range []string{
		`{"Error Message": "Invalid API call."}`,
		`{"Information": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`,
		`{"Note": "API call frequency is 5 calls per minute."}`,
	} {
		srv, _ := newAVServer(t, map[string]string{"TIME_SERIES_DAILY": body})
		av := NewAlphaVantage(srv.URL, "demo", "BABA", 365, 0, srv.Client())
		if _, err := av.FetchMarket(context.Background()); err == nil {
			t.Errorf("expected failure for %s", body)
		}
	}
}

func TestAlphaVantage_HTTPErrorIsAPIError(t *testing.T) {
	srv, _ := newAVServer(t, map[string]string{})
	av := NewAlphaVantage(srv.URL, "demo", "BABA", 365, 0, srv.Client())
	_, err := av.FetchFinancial(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestAlphaVantage_FetchFinancial(t *testing.T) {
	srv, calls := newAVServer(t, map[string]string{
		"INCOME_STATEMENT": avStatementJSON,
		"BALANCE_SHEET":    avStatementJSON,
		"CASH_FLOW":        avStatementJSON,
		"EARNINGS":         `{"symbol": "BABA", "quarterlyEarnings": [{"fiscalDateEnding": "2023-12-31", "reportedEPS": "2.67"}]}`,
	})

	av := NewAlphaVantage(srv.URL, "demo", "BABA", 365, 0, srv.Client())
	rec, err := av.FetchFinancial(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(*calls) != 4 {
		t.Errorf("expected 4 calls, got %v", *calls)
	}
	if !ValidFinancial(rec) {
		t.Fatal("expected a valid record")
	}
	for _, typ := range model.ReportTypes {
		if len(rec.AnnualData.Get(typ)) != 1 || len(rec.QuarterlyData.Get(typ)) != 1 {
			t.Errorf("%s: expected one annual and one quarterly report", typ)
		}
	}
	annual := rec.AnnualData.IncomeStatement[0]
	if annual.FiscalDate() != "2023-03-31" {
		t.Errorf("unexpected fiscal date %q", annual.FiscalDate())
	}
	if annual["totalRevenue"] != 868687000000.0 {
		t.Errorf("expected numeric revenue, got %#v", annual["totalRevenue"])
	}
	if v, ok := annual["netIncome"]; !ok || v != nil {
		t.Errorf("expected None to become null, got %#v", v)
	}
	if annual["reportedCurrency"] != "CNY" {
		t.Errorf("expected currency text kept, got %#v", annual["reportedCurrency"])
	}
	if len(rec.Earnings.Historical) != 1 || rec.Earnings.Historical[0]["reportedEPS"] != 2.67 {
		t.Errorf("unexpected earnings %+v", rec.Earnings)
	}
}

func TestAlphaVantage_EarningsBestEffort(t *testing.T) {
	srv, _ := newAVServer(t, map[string]string{
		"INCOME_STATEMENT": avStatementJSON,
		"BALANCE_SHEET":    avStatementJSON,
		"CASH_FLOW":        avStatementJSON,
		"EARNINGS":         `{"Note": "limit"}`,
	})
	av := NewAlphaVantage(srv.URL, "demo", "BABA", 365, 0, srv.Client())
	rec, err := av.FetchFinancial(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Earnings == nil || len(rec.Earnings.Historical) != 0 {
		t.Errorf("expected empty earnings, got %+v", rec.Earnings)
	}
}
