package recorder

import (
	"context"
	"time"
)

// Attempt outcomes.
const (
	OutcomeOK      = "OK"
	OutcomeInvalid = "INVALID"
	OutcomeFailed  = "FAILED"
)

// AttemptEvent records one provider call made by a collector.
type AttemptEvent struct {
	RunID    string
	Category string // "market", "financial", "news"
	Source   string
	Outcome  string // OutcomeOK, OutcomeInvalid or OutcomeFailed
	Detail   string
	Duration time.Duration
}

// CycleEvent records one full collection cycle.
type CycleEvent struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Market    bool // a market document was produced
	Financial bool // a financial document was produced
	News      bool
	Sources   []string
	Error     string
}

// Recorder persists collection run metadata for later inspection. It never
// stores the collected data itself.
type Recorder interface {
	RecordAttempt(evt *AttemptEvent) error
	RecordCycle(evt *CycleEvent) error
	Close() error
}

type runIDKey struct{}

// WithRunID returns a context carrying the collection run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
