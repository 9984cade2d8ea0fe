package collector

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketArchive/internal/model"
)

// YahooWeb implements MarketSource by scraping the public quote and
// history pages. It is the last-resort market source.
type YahooWeb struct {
	BaseURL     string
	Symbol      string
	HKSymbol    string
	HistoryDays int
	Client      *http.Client
}

// NewYahooWeb creates a scraping adapter rooted at baseURL
// (e.g. https://finance.yahoo.com/quote).
func NewYahooWeb(baseURL, symbol, hkSymbol string, historyDays int, client *http.Client) *YahooWeb {
	return &YahooWeb{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Symbol:      symbol,
		HKSymbol:    hkSymbol,
		HistoryDays: historyDays,
		Client:      client,
	}
}

func (w *YahooWeb) Name() string { return "yahoo_web" }

// historyDateLayouts are the row date formats seen on the history page.
var historyDateLayouts = []string{"Jan 2, 2006", "Jan 02, 2006", time.DateOnly}

// statisticLabels maps quote-page statistic labels onto quote keys.
var statisticLabels = map[string]string{
	"market cap":        model.QuoteMarketCap,
	"pe ratio (ttm)":    model.QuotePERatio,
	"beta (5y monthly)": model.QuoteBeta,
	"volume":            model.QuoteVolume,
}

// streamerFields maps fin-streamer data-field values onto quote keys.
var streamerFields = map[string]string{
	"regularMarketPrice":  model.QuotePrice,
	"regularMarketVolume": model.QuoteVolume,
	"marketCap":           model.QuoteMarketCap,
}

func (w *YahooWeb) page(ctx context.Context, u string) (*goquery.Document, error) {
	body, err := getBody(ctx, w.Client, w.Name(), u, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("yahoo_web parse: %w", err)
	}
	return doc, nil
}

func (w *YahooWeb) fetchMarket(ctx context.Context, symbol string) (*model.MarketHistory, error) {
	base := w.BaseURL + "/" + url.PathEscape(symbol)

	quoteDoc, err := w.page(ctx, base+"/")
	if err != nil {
		return nil, err
	}
	info := scrapeQuote(quoteDoc, symbol)

	histDoc, err := w.page(ctx, base+"/history/")
	if err != nil {
		return nil, err
	}
	bars := scrapeHistory(histDoc)
	if w.HistoryDays > 0 && len(bars) > w.HistoryDays {
		bars = bars[:w.HistoryDays]
	}
	return &model.MarketHistory{History: bars, Info: info}, nil
}

// scrapeQuote reads live fin-streamer values first, then the statistics table.
func scrapeQuote(doc *goquery.Document, symbol string) model.Quote {
	info := model.Quote{}
	doc.Find("fin-streamer[data-field]").Each(func(_ int, s *goquery.Selection) {
		if sym, ok := s.Attr("data-symbol"); ok && !strings.EqualFold(sym, symbol) {
			return
		}
		key, ok := streamerFields[s.AttrOr("data-field", "")]
		if !ok || info.Has(key) {
			return
		}
		text := s.AttrOr("data-value", s.AttrOr("value", s.Text()))
		if f, ok := parseNumber(text); ok && f != 0 {
			info[key] = f
		}
	})

	doc.Find("li, tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.First().Text()))
		label = strings.TrimSpace(strings.TrimSuffix(label, "(intraday)"))
		key, ok := statisticLabels[label]
		if !ok || info.Has(key) {
			return
		}
		if f, ok := parseNumber(cells.Last().Text()); ok && f != 0 {
			info[key] = f
		}
	})
	return info
}

// scrapeHistory returns the OHLCV rows of the history table, newest first.
// Dividend and split rows do not have enough cells and are skipped.
func scrapeHistory(doc *goquery.Document) []model.Bar {
	var bars []model.Bar
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}
		text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }

		var date time.Time
		var err error
		for _, layout := range historyDateLayouts {
			if date, err = time.Parse(layout, text(0)); err == nil {
				break
			}
		}
		if err != nil {
			return
		}

		var vals [5]float64
		// columns: date, open, high, low, close, adj close, volume
		for i, col := range []int{1, 2, 3, 4, 6} {
			f, ok := parseNumber(text(col))
			if !ok {
				return
			}
			vals[i] = f
		}
		bars = append(bars, model.Bar{
			Date:   date.Format(time.DateOnly),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	})
	slices.SortFunc(bars, func(a, b model.Bar) int { return strings.Compare(b.Date, a.Date) })
	return bars
}

// FetchMarket scrapes the US ticker and, best effort, the HK ticker.
func (w *YahooWeb) FetchMarket(ctx context.Context) (*model.MarketRecord, error) {
	us, err := w.fetchMarket(ctx, w.Symbol)
	if err != nil {
		return nil, err
	}
	rec := &model.MarketRecord{
		USMarket:       us,
		CollectionTime: time.Now(),
		DataSource:     w.Name(),
	}
	if w.HKSymbol != "" {
		hk, err := w.fetchMarket(ctx, w.HKSymbol)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			log.Printf("[WARN] yahoo_web: hk market %s: %v", w.HKSymbol, err)
		default:
			rec.HKMarket = hk
		}
	}
	return rec, nil
}
