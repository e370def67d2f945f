package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apartment-scraper/config"
	"apartment-scraper/metrics"
	"apartment-scraper/models"
	"apartment-scraper/scraper"
	"apartment-scraper/utils"
)

// ErrCycleAbandoned is returned when every session attempt of a cycle failed.
var ErrCycleAbandoned = errors.New("search cycle abandoned")

// Session is one live browser session.
type Session interface {
	DescriptionFetcher
	AcceptConsent(ctx context.Context) error
	FetchResults(ctx context.Context, searchURL string) ([]models.RawListing, error)
	Err() error
	Close() error
}

// SessionFactory opens a fresh Session.
type SessionFactory func(ctx context.Context) (Session, error)

// Orchestrator runs search cycles: every target in order, each listing
// through the Processor, inside a retried browser session.
type Orchestrator struct {
	open      SessionFactory
	processor *Processor
	targets   []string

	listingPause time.Duration
	targetPause  time.Duration
	retryDelay   time.Duration
	maxAttempts  int
	sleep        func(ctx context.Context, d time.Duration) error

	lastReport *CycleReport
	metrics    *metrics.Metrics
	logger     *utils.Logger
}

func NewOrchestrator(open SessionFactory, processor *Processor, cfg *config.Config, m *metrics.Metrics, logger *utils.Logger) *Orchestrator {
	attempts := cfg.MaxSessionAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Orchestrator{
		open:         open,
		processor:    processor,
		targets:      cfg.SearchURLs(),
		listingPause: cfg.ListingPause,
		targetPause:  cfg.TargetPause,
		retryDelay:   cfg.SessionRetryDelay,
		maxAttempts:  attempts,
		sleep:        utils.Sleep,
		metrics:      m,
		logger:       logger,
	}
}

// LastReport returns the report of the most recent finished cycle, or nil.
func (o *Orchestrator) LastReport() *CycleReport {
	return o.lastReport
}

// RunCycle performs one search cycle. Stats accumulate across session
// attempts. When all attempts fail the cycle is abandoned and the error wraps
// ErrCycleAbandoned; cancellation returns ctx.Err() without further attempts.
func (o *Orchestrator) RunCycle(ctx context.Context) (models.CycleStats, error) {
	cycleID := uuid.NewString()[:8]
	started := time.Now()
	report := newCycleReport(cycleID, started)
	var stats models.CycleStats

	o.logger.Info("[cycle %s] Starting new search cycle over %d targets", cycleID, len(o.targets))

	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		err = o.runSession(ctx, cycleID, &stats, report)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		o.logger.Error("[cycle %s] Scraper failed (attempt %d/%d): %v", cycleID, attempt, o.maxAttempts, err)
		if attempt == o.maxAttempts {
			break
		}
		o.logger.Info("[cycle %s] Retrying with a new session in %v", cycleID, o.retryDelay)
		if sleepErr := o.sleep(ctx, o.retryDelay); sleepErr != nil {
			return stats, sleepErr
		}
	}

	elapsed := time.Since(started)
	report.finish(stats, elapsed)
	o.lastReport = report

	if err != nil {
		o.logger.Error("[cycle %s] Maximum session attempts reached, giving up. %s", cycleID, report.Summary())
		o.metrics.RecordCycle(metrics.CycleAbandoned, elapsed)
		// Reported as a failure so the runner's consecutive-failure backoff can trigger.
		return stats, fmt.Errorf("%w after %d attempts: %w", ErrCycleAbandoned, o.maxAttempts, err)
	}

	o.logger.Info("[cycle %s] %s", cycleID, report.Summary())
	o.metrics.RecordCycle(metrics.CycleOK, elapsed)
	return stats, nil
}

// runSession opens a session and runs every target through it. Only errors
// that make the session unusable are returned.
func (o *Orchestrator) runSession(ctx context.Context, cycleID string, stats *models.CycleStats, report *CycleReport) error {
	session, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("[cycle %s] Closing session: %v", cycleID, err)
		}
	}()

	if err := session.AcceptConsent(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	for i, target := range o.targets {
		if i > 0 {
			if err := o.sleep(ctx, o.targetPause); err != nil {
				return err
			}
		}
		if err := o.runTarget(ctx, session, cycleID, target, stats, report); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runTarget(ctx context.Context, session Session, cycleID, target string, stats *models.CycleStats, report *CycleReport) error {
	listings, err := session.FetchResults(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sessErr := session.Err(); sessErr != nil {
			return fmt.Errorf("session lost: %w", sessErr)
		}
		if errors.Is(err, scraper.ErrTimeout) {
			o.logger.Warn("[cycle %s] Timeout waiting for search results: %v", cycleID, err)
			return nil
		}
		o.logger.Error("[cycle %s] Error checking search URL %s: %v", cycleID, target, err)
		stats.Errors++
		return nil
	}

	stats.TotalFound += len(listings)

	for i := range listings {
		if i > 0 {
			if err := o.sleep(ctx, o.listingPause); err != nil {
				return err
			}
		}

		processed, err := o.processor.Process(ctx, session, listings[i])
		switch {
		case err != nil:
			stats.Errors++
		case processed:
			stats.Processed++
			report.add(listings[i])
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sessErr := session.Err(); sessErr != nil {
			return fmt.Errorf("session lost: %w", sessErr)
		}
	}
	return nil
}
