package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrNoValidSource is returned by Fetch when every provider failed or
// returned unusable data.
var ErrNoValidSource = errors.New("no valid data source")

// Collector fetches one category of data and persists it as a document.
type Collector[T any] interface {
	Name() string
	Fetch(ctx context.Context) (*T, error)
	Persist(rec *T) error
	Load() (*T, error)
}

// Run fetches and persists one document. Source exhaustion is logged and
// leaves the previous document in place with a nil record returned. A
// persist failure is logged and the record is still returned. Only context
// errors are returned.
func Run[T any](ctx context.Context, c Collector[T]) (*T, error) {
	rec, err := c.Fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrNoValidSource) {
			log.Printf("[WARN] %s: no valid source this cycle, previous document kept", c.Name())
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), ctx.Err())
		}
		log.Printf("[ERROR] %s: fetch: %v", c.Name(), err)
		return nil, nil
	}

	if err := c.Persist(rec); err != nil {
		log.Printf("[ERROR] %s: persist: %v", c.Name(), err)
		return rec, nil
	}
	log.Printf("[INFO] %s: document saved", c.Name())
	return rec, nil
}
