package collector

import (
	"context"
	"math/rand"
	"time"
)

// Pacer waits a random duration in [Min, Max] before each provider attempt
// so consecutive calls do not trip provider rate limits.
type Pacer struct {
	Min time.Duration
	Max time.Duration
}

// Wait blocks for the jittered delay or until ctx is done.
func (p Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := p.Min
	if p.Max > p.Min {
		d += time.Duration(rand.Int63n(int64(p.Max - p.Min + 1)))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
