package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"apartment-scraper/metrics"
	"apartment-scraper/models"
	"apartment-scraper/utils"
)

// ErrInvalidListing is returned for records without an id or URL.
var ErrInvalidListing = errors.New("listing has no id or url")

// ListingGate is the dedup and persistence boundary used by the Processor.
type ListingGate interface {
	Exists(ctx context.Context, listingID string) (bool, error)
	Save(ctx context.Context, listing *models.PersistedListing) (int64, error)
	MarkProcessed(ctx context.Context, listingID string) error
	MarkError(ctx context.Context, listing *models.RawListing, message string) error
	Remember(listingID string)
}

// DescriptionFetcher loads the full text of a listing.
type DescriptionFetcher interface {
	FetchDescription(ctx context.Context, url string) (string, error)
}

// ListingNotifier announces a newly stored listing.
type ListingNotifier interface {
	Notify(ctx context.Context, listing *models.RawListing) bool
}

// Processor runs one listing through fetch, save, notify and mark-processed.
type Processor struct {
	gate     ListingGate
	notifier ListingNotifier
	filter   *Filter
	metrics  *metrics.Metrics
	logger   *utils.Logger
}

// NewProcessor wires a Processor. notifier and filter may be nil; a nil
// filter accepts every listing.
func NewProcessor(gate ListingGate, notifier ListingNotifier, filter *Filter, m *metrics.Metrics, logger *utils.Logger) *Processor {
	return &Processor{
		gate:     gate,
		notifier: notifier,
		filter:   filter,
		metrics:  m,
		logger:   logger,
	}
}

// Process handles a single listing. It returns (false, nil) when the listing
// was already handled, (true, nil) when it was stored and marked processed,
// and (false, err) when it failed and was recorded as an error.
func (p *Processor) Process(ctx context.Context, fetcher DescriptionFetcher, raw models.RawListing) (processed bool, err error) {
	if !raw.Valid() {
		return false, ErrInvalidListing
	}

	exists, err := p.gate.Exists(ctx, raw.ListingID)
	if err != nil {
		p.metrics.RecordListing(metrics.OutcomeError)
		return false, fmt.Errorf("check listing %s: %w", raw.ListingID, err)
	}
	if exists {
		p.logger.Debug("[processor] Listing %s already processed, skipping", raw.ListingID)
		p.metrics.RecordListing(metrics.OutcomeSkipped)
		return false, nil
	}

	// Once a listing is claimed its writes run to completion even during shutdown.
	work := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			processed = false
			err = fmt.Errorf("listing %s: panic: %v", raw.ListingID, r)
			p.recordError(work, &raw, err)
		}
	}()

	p.logger.Info("[processor] Processing listing: %s - %s", raw.ListingID, raw.Title)

	if description, fetchErr := fetcher.FetchDescription(ctx, raw.URL); fetchErr != nil {
		p.logger.Warn("[processor] Using preview text for %s, description fetch failed: %v", raw.ListingID, fetchErr)
	} else if description != "" {
		raw.Description = description
	}

	status, announce := p.classify(&raw)

	if _, err := p.gate.Save(work, models.NewPersistedListing(&raw, status)); err != nil {
		p.recordError(work, &raw, err)
		return false, err
	}
	p.logger.Info("[processor] Saved listing %s as %s", raw.ListingID, status)

	if announce && p.notifier != nil {
		p.notify(work, &raw)
	}

	if err := p.gate.MarkProcessed(work, raw.ListingID); err != nil {
		p.recordError(work, &raw, err)
		return false, err
	}
	p.gate.Remember(raw.ListingID)
	p.metrics.RecordListing(metrics.OutcomeProcessed)
	return true, nil
}

// classify decides the stored status and whether to send a notification.
func (p *Processor) classify(raw *models.RawListing) (models.Status, bool) {
	if p.filter == nil {
		return models.StatusSuitable, true
	}
	suitable, matched := p.filter.AnalyzeDescription(raw.Description)
	if !suitable {
		p.logger.Info("[processor] Listing %s unsuitable, matched: %s", raw.ListingID, strings.Join(matched, ", "))
		return models.StatusNew, false
	}
	return models.StatusSuitable, true
}

// notify never fails the listing; its outcome is only logged.
func (p *Processor) notify(ctx context.Context, raw *models.RawListing) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("[processor] Notifier panicked for %s: %v", raw.ListingID, r)
			p.metrics.RecordNotification(false)
		}
	}()

	delivered := p.notifier.Notify(ctx, raw)
	p.metrics.RecordNotification(delivered)
	if delivered {
		p.logger.Info("[processor] Notification sent for listing: %s", raw.ListingID)
	} else {
		p.logger.Warn("[processor] Notification failed for listing: %s", raw.ListingID)
	}
}

func (p *Processor) recordError(ctx context.Context, raw *models.RawListing, cause error) {
	p.logger.Error("[processor] Error processing listing %s: %v", raw.ListingID, cause)
	p.metrics.RecordListing(metrics.OutcomeError)
	if err := p.gate.MarkError(ctx, raw, cause.Error()); err != nil {
		p.logger.Error("[processor] Could not record error for %s: %v", raw.ListingID, err)
	}
}
