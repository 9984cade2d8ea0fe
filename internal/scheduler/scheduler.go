package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"MarketArchive/internal/collector"
	"MarketArchive/internal/model"
	"MarketArchive/internal/notifier"
	"MarketArchive/internal/recorder"
)

// Scheduler runs collection cycles: all categories concurrently, then a
// wait of Interval after success or RetryInterval after a failed cycle.
type Scheduler struct {
	Market    collector.Collector[model.MarketRecord]
	Financial collector.Collector[model.FinancialRecord]
	News      collector.Collector[model.NewsRecord]
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Subject   string

	Interval      time.Duration
	RetryInterval time.Duration

	schedule cron.Schedule // replaces Interval after success when set
	trigger  chan struct{}
	now      func() time.Time

	mu   sync.Mutex
	last *recorder.CycleEvent
	next time.Time
}

// CycleResult holds the documents produced by one cycle. A nil record means
// the category produced nothing and its previous document was kept.
type CycleResult struct {
	RunID     string
	Market    *model.MarketRecord
	Financial *model.FinancialRecord
	News      *model.NewsRecord
}

// NewScheduler creates a scheduler. cronExpr is an optional standard
// five-field cron expression used instead of interval for the success path.
func NewScheduler(
	market collector.Collector[model.MarketRecord],
	financial collector.Collector[model.FinancialRecord],
	news collector.Collector[model.NewsRecord],
	n notifier.Notifier,
	rec recorder.Recorder,
	subject string,
	interval, retryInterval time.Duration,
	cronExpr string,
) (*Scheduler, error) {
	s := &Scheduler{
		Market:        market,
		Financial:     financial,
		News:          news,
		Notifier:      n,
		Recorder:      rec,
		Subject:       subject,
		Interval:      interval,
		RetryInterval: retryInterval,
		trigger:       make(chan struct{}, 1),
		now:           time.Now,
	}
	if cronExpr != "" {
		sched, err := cron.ParseStandard(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse collection cron %q: %w", cronExpr, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Loop runs a cycle immediately and then on schedule until ctx is done.
// A manual Trigger cuts the current wait short.
func (s *Scheduler) Loop(ctx context.Context) {
	log.Println("[INFO] collection loop started")
	for {
		_, err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			log.Println("[INFO] collection loop stopped")
			return
		}

		wait := s.nextWait(err != nil)
		next := s.now().Add(wait)
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		log.Printf("[INFO] next collection at %s (in %s)", next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[INFO] collection loop stopped")
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			log.Println("[INFO] manual collection triggered")
		}
	}
}

// nextWait returns the delay before the next cycle.
func (s *Scheduler) nextWait(failed bool) time.Duration {
	var sched cron.Schedule = cron.Every(s.Interval)
	switch {
	case failed:
		sched = cron.Every(s.RetryInterval)
	case s.schedule != nil:
		sched = s.schedule
	}
	now := s.now()
	return sched.Next(now).Sub(now)
}

// Trigger asks the loop to start a cycle now. It reports false when a
// trigger is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunCycle collects every category concurrently and waits for all of them.
// A panic in one category is recovered and reported as the cycle error;
// the other categories still complete.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{RunID: uuid.NewString()}
	ctx = recorder.WithRunID(ctx, res.RunID)
	start := s.now()
	log.Printf("[INFO] collection cycle %s started", res.RunID)

	var g errgroup.Group
	g.Go(guard("market", func() (err error) {
		res.Market, err = collector.Run(ctx, s.Market)
		return err
	}))
	g.Go(guard("financial", func() (err error) {
		res.Financial, err = collector.Run(ctx, s.Financial)
		return err
	}))
	if s.News != nil {
		g.Go(guard("news", func() (err error) {
			res.News, err = collector.Run(ctx, s.News)
			return err
		}))
	}
	err := g.Wait()

	evt := &recorder.CycleEvent{
		RunID:     res.RunID,
		StartedAt: start,
		Duration:  s.now().Sub(start),
		Market:    res.Market != nil,
		Financial: res.Financial != nil,
		News:      res.News != nil,
		Sources:   res.sources(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	s.finish(ctx, evt)

	if err != nil {
		log.Printf("[ERROR] collection cycle %s failed: %v", res.RunID, err)
		return res, err
	}
	log.Printf("[INFO] collection cycle %s done in %s (market=%v financial=%v news=%v)",
		res.RunID, evt.Duration.Round(time.Millisecond), evt.Market, evt.Financial, evt.News)
	return res, nil
}

// guard converts a panic in fn into an error.
func guard(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ERROR] %s panicked: %v\n%s", name, r, debug.Stack())
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn()
	}
}

func (r *CycleResult) sources() []string {
	var out []string
	if r.Market != nil {
		out = append(out, "market:"+r.Market.DataSource)
	}
	if r.Financial != nil {
		for _, src := range r.Financial.DataSources {
			out = append(out, "financial:"+src)
		}
	}
	return out
}

func (s *Scheduler) finish(ctx context.Context, evt *recorder.CycleEvent) {
	s.mu.Lock()
	s.last = evt
	s.mu.Unlock()

	if s.Recorder != nil {
		if err := s.Recorder.RecordCycle(evt); err != nil {
			log.Printf("[ERROR] record cycle: %v", err)
		}
	}

	if ctx.Err() != nil || s.Notifier == nil {
		return
	}
	var subject string
	switch {
	case evt.Error != "":
		subject = "collection cycle failed"
	case !evt.Market && !evt.Financial:
		subject = "market and financial collection produced no data"
	case !evt.Market:
		subject = "market collection produced no data"
	case !evt.Financial:
		subject = "financial collection produced no data"
	default:
		return
	}
	if s.Subject != "" {
		subject = s.Subject + ": " + subject
	}
	if err := s.Notifier.Notify(ctx, notifier.FormatCycleAlert(subject, evt)); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

// Last returns the most recent cycle event, or nil before the first cycle.
func (s *Scheduler) Last() *recorder.CycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// HandleCommand processes a bot command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	switch command {
	case notifier.CommandStatus:
		s.mu.Lock()
		last, next := s.last, s.next
		s.mu.Unlock()
		return notifier.FormatStatus(last, next)
	case notifier.CommandCollect:
		if s.Trigger() {
			return "Collection cycle queued."
		}
		return "A collection cycle is already queued."
	default:
		return notifier.FormatHelp()
	}
}
