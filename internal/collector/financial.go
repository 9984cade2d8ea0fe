package collector

import (
	"context"
	"log"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// FinancialCollector gathers statements from every source and merges the
// valid ones.
type FinancialCollector struct {
	Sources  []FinancialSource
	Store    *store.Store
	Pacer    Pacer
	Recorder recorder.Recorder
}

// NewFinancialCollector creates a collector whose source order decides
// which provider wins a fiscal-date conflict: later sources win.
func NewFinancialCollector(st *store.Store, rec recorder.Recorder, pacer Pacer, sources ...FinancialSource) *FinancialCollector {
	return &FinancialCollector{Sources: sources, Store: st, Pacer: pacer, Recorder: rec}
}

func (c *FinancialCollector) Name() string { return "financial" }

// Fetch tries every source and merges all records passing ValidFinancial.
func (c *FinancialCollector) Fetch(ctx context.Context) (*model.FinancialRecord, error) {
	ch := &chain[model.FinancialRecord]{
		category: c.Name(),
		valid:    ValidFinancial,
		pacer:    c.Pacer,
		rec:      c.Recorder,
	}
	for _, s := range c.Sources {
		ch.links = append(ch.links, link[model.FinancialRecord]{name: s.Name(), fetch: s.FetchFinancial})
	}

	valid, err := ch.run(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		return nil, ErrNoValidSource
	}

	merged := MergeFinancial(valid)
	dq := merged.DataQuality
	log.Printf("[INFO] financial: merged %d source(s) %v: quarterly %+v, annual %+v",
		dq.NumberOfSources, dq.Sources, dq.QuarterlyDataPoints, dq.AnnualDataPoints)
	return merged, nil
}

func (c *FinancialCollector) Persist(rec *model.FinancialRecord) error {
	return c.Store.Save(store.FinancialDocument, rec)
}

func (c *FinancialCollector) Load() (*model.FinancialRecord, error) {
	var rec model.FinancialRecord
	if err := c.Store.Load(store.FinancialDocument, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
