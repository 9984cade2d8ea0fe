package collector

import (
	"context"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// MarketCollector keeps the first valid market snapshot from its sources.
type MarketCollector struct {
	Sources  []MarketSource
	Store    *store.Store
	Pacer    Pacer
	Recorder recorder.Recorder
}

// NewMarketCollector creates a collector trying sources in the given order.
func NewMarketCollector(st *store.Store, rec recorder.Recorder, pacer Pacer, sources ...MarketSource) *MarketCollector {
	return &MarketCollector{Sources: sources, Store: st, Pacer: pacer, Recorder: rec}
}

func (c *MarketCollector) Name() string { return "market" }

// Fetch returns the first record that passes ValidMarket, unmodified.
func (c *MarketCollector) Fetch(ctx context.Context) (*model.MarketRecord, error) {
	ch := &chain[model.MarketRecord]{
		category: c.Name(),
		valid:    ValidMarket,
		pacer:    c.Pacer,
		rec:      c.Recorder,
	}
	for _, s := range c.Sources {
		ch.links = append(ch.links, link[model.MarketRecord]{name: s.Name(), fetch: s.FetchMarket})
	}

	valid, err := ch.run(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		return nil, ErrNoValidSource
	}
	return valid[0], nil
}

func (c *MarketCollector) Persist(rec *model.MarketRecord) error {
	return c.Store.Save(store.MarketDocument, rec)
}

func (c *MarketCollector) Load() (*model.MarketRecord, error) {
	var rec model.MarketRecord
	if err := c.Store.Load(store.MarketDocument, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
