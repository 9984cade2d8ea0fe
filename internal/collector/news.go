package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// NewsStatusOK is the news document status when at least one feed was read.
const NewsStatusOK = "ok"

// NewsCollector builds the news document from RSS/Atom feeds. With no feeds
// configured it writes an empty placeholder document.
type NewsCollector struct {
	Feeds    []string
	Keywords []string // matched case-insensitively against title and summary
	MaxAge   time.Duration
	Limit    int
	Store    *store.Store
	Recorder recorder.Recorder

	parser *gofeed.Parser
	now    func() time.Time
}

// NewNewsCollector creates a news collector for the subject named by keywords.
func NewNewsCollector(st *store.Store, rec recorder.Recorder, client *http.Client, feeds, keywords []string, maxAge time.Duration, limit int) *NewsCollector {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "Mozilla/5.0"

	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &NewsCollector{
		Feeds:    feeds,
		Keywords: kw,
		MaxAge:   maxAge,
		Limit:    limit,
		Store:    st,
		Recorder: rec,
		parser:   parser,
		now:      time.Now,
	}
}

func (c *NewsCollector) Name() string { return "news" }

// Fetch reads every feed and keeps matching items, newest first. It fails
// with ErrNoValidSource only when feeds are configured and all of them fail.
func (c *NewsCollector) Fetch(ctx context.Context) (*model.NewsRecord, error) {
	now := c.now()
	rec := &model.NewsRecord{News: []model.NewsItem{}, CollectionTime: now}
	if len(c.Feeds) == 0 {
		rec.Status = model.NewsStatusUnavailable
		return rec, nil
	}

	ok := 0
	seen := make(map[string]bool)
	for _, feedURL := range c.Feeds {
		start := time.Now()
		items, err := c.fetchFeed(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[WARN] news: %v", err)
			c.record(ctx, feedURL, recorder.OutcomeFailed, err.Error(), time.Since(start))
			continue
		}
		ok++
		c.record(ctx, feedURL, recorder.OutcomeOK, fmt.Sprintf("%d item(s)", len(items)), time.Since(start))

		for _, it := range items {
			key := it.Link
			if key == "" {
				key = "title:" + it.Title
			}
			if seen[key] || !c.relevant(it, now) {
				continue
			}
			seen[key] = true
			rec.News = append(rec.News, it)
		}
	}
	if ok == 0 {
		return nil, ErrNoValidSource
	}

	slices.SortStableFunc(rec.News, func(a, b model.NewsItem) int {
		return b.Published.Compare(a.Published)
	})
	if c.Limit > 0 && len(rec.News) > c.Limit {
		rec.News = rec.News[:c.Limit]
	}
	rec.Status = NewsStatusOK
	log.Printf("[INFO] news: %d item(s) from %d/%d feed(s)", len(rec.News), ok, len(c.Feeds))
	return rec, nil
}

func (c *NewsCollector) fetchFeed(ctx context.Context, feedURL string) ([]model.NewsItem, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]model.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		it := model.NewsItem{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: cleanHTML(item.Description),
			Source:  feed.Title,
		}
		switch {
		case item.PublishedParsed != nil:
			it.Published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			it.Published = *item.UpdatedParsed
		}
		items = append(items, it)
	}
	return items, nil
}

// relevant reports whether an item mentions the subject and is recent
// enough. Items without a publish time are kept when they match.
func (c *NewsCollector) relevant(it model.NewsItem, now time.Time) bool {
	if c.MaxAge > 0 && !it.Published.IsZero() && now.Sub(it.Published) > c.MaxAge {
		return false
	}
	if len(c.Keywords) == 0 {
		return true
	}
	text := strings.ToLower(it.Title + " " + it.Summary)
	for _, kw := range c.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (c *NewsCollector) record(ctx context.Context, source, outcome, detail string, took time.Duration) {
	recordAttempt(ctx, c.Recorder, c.Name(), source, outcome, detail, took)
}

func (c *NewsCollector) Persist(rec *model.NewsRecord) error {
	return c.Store.Save(store.NewsDocument, rec)
}

func (c *NewsCollector) Load() (*model.NewsRecord, error) {
	var rec model.NewsRecord
	if err := c.Store.Load(store.NewsDocument, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// cleanHTML strips markup from a feed summary.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
