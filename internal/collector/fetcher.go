package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
)

// MarketSource fetches a market snapshot from one provider.
type MarketSource interface {
	FetchMarket(ctx context.Context) (*model.MarketRecord, error)
	Name() string
}

// FinancialSource fetches financial statements from one provider.
type FinancialSource interface {
	FetchFinancial(ctx context.Context) (*model.FinancialRecord, error)
	Name() string
}

// link is one provider in a fallback chain.
type link[T any] struct {
	name  string
	fetch func(context.Context) (*T, error)
}

// chain tries providers in order and collects the records that pass valid.
// A failing or invalid provider is logged and skipped. When firstOnly is
// set the chain stops at the first valid record. Only a cancelled ctx
// aborts the chain with an error.
type chain[T any] struct {
	category string
	links    []link[T]
	valid    func(*T) bool
	pacer    Pacer
	rec      recorder.Recorder
}

func (c *chain[T]) run(ctx context.Context, firstOnly bool) ([]*T, error) {
	var out []*T
	for _, l := range c.links {
		if err := c.pacer.Wait(ctx); err != nil {
			return out, err
		}

		log.Printf("[INFO] %s: trying %s", c.category, l.name)
		start := time.Now()
		rec, err := call(ctx, l)
		took := time.Since(start)

		switch {
		case err != nil && ctx.Err() != nil:
			return out, ctx.Err()
		case err != nil:
			log.Printf("[WARN] %s: %s failed: %v", c.category, l.name, err)
			c.record(ctx, l.name, recorder.OutcomeFailed, err.Error(), took)
			continue
		case !c.valid(rec):
			log.Printf("[WARN] %s: %s returned no usable data", c.category, l.name)
			c.record(ctx, l.name, recorder.OutcomeInvalid, "", took)
			continue
		}

		log.Printf("[INFO] %s: %s ok (%s)", c.category, l.name, took.Round(time.Millisecond))
		c.record(ctx, l.name, recorder.OutcomeOK, "", took)
		out = append(out, rec)
		if firstOnly {
			break
		}
	}
	return out, nil
}

// call invokes one provider, turning a panic into an error.
func call[T any](ctx context.Context, l link[T]) (rec *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return l.fetch(ctx)
}

func (c *chain[T]) record(ctx context.Context, source, outcome, detail string, took time.Duration) {
	recordAttempt(ctx, c.rec, c.category, source, outcome, detail, took)
}

func recordAttempt(ctx context.Context, rec recorder.Recorder, category, source, outcome, detail string, took time.Duration) {
	if rec == nil {
		return
	}
	err := rec.RecordAttempt(&recorder.AttemptEvent{
		RunID:    recorder.RunID(ctx),
		Category: category,
		Source:   source,
		Outcome:  outcome,
		Detail:   detail,
		Duration: took,
	})
	if err != nil {
		log.Printf("[WARN] record attempt: %v", err)
	}
}
