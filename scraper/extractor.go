package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"apartment-scraper/config"
	"apartment-scraper/models"
	"apartment-scraper/utils"
)

const consentSettle = time.Second

// Extractor turns rendered pages into listing records. It owns one Browser
// for the lifetime of a session.
type Extractor struct {
	browser        Browser
	sel            config.Selectors
	baseURL        string
	elementTimeout time.Duration
	retry          utils.RetryConfig
	logger         *utils.Logger
}

// NewExtractor wraps browser with the site selectors and timeouts from cfg.
func NewExtractor(browser Browser, cfg *config.Config, logger *utils.Logger) *Extractor {
	return &Extractor{
		browser:        browser,
		sel:            cfg.Selectors,
		baseURL:        cfg.BaseURL,
		elementTimeout: cfg.ElementTimeout,
		retry: utils.RetryConfig{
			MaxAttempts: cfg.DescriptionRetries,
			Delay:       cfg.DescriptionRetryDelay,
			Retryable:   IsTransient,
			Logger:      logger,
		},
		logger: logger,
	}
}

// OpenSession starts a Chrome session and wraps it in an Extractor.
func OpenSession(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Extractor, error) {
	browser, err := NewChromeBrowser(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewExtractor(browser, cfg, logger), nil
}

// AcceptConsent opens the site root and dismisses the GDPR banner if shown.
func (e *Extractor) AcceptConsent(ctx context.Context) error {
	if err := e.browser.Navigate(ctx, e.baseURL); err != nil {
		return err
	}

	if _, err := e.browser.WaitAny(ctx, e.elementTimeout, e.sel.ConsentButton); err != nil {
		if errors.Is(err, ErrTimeout) {
			e.logger.Debug("[scraper] No consent banner found or already accepted")
			return nil
		}
		return err
	}

	e.logger.Info("[scraper] Accepting consent banner")
	if err := e.browser.Click(ctx, e.sel.ConsentButton); err != nil {
		return fmt.Errorf("accept consent: %w", err)
	}
	return utils.Sleep(ctx, consentSettle)
}

// FetchResults loads a search results page and returns its listings.
// An empty result with a nil error means the site reported no matches;
// an empty result wrapping ErrTimeout means the page never rendered.
func (e *Extractor) FetchResults(ctx context.Context, searchURL string) ([]models.RawListing, error) {
	district := districtFromURL(searchURL)
	e.logger.Info("[scraper] Checking district %s", strings.ToUpper(district))

	if err := e.browser.Navigate(ctx, searchURL); err != nil {
		return nil, err
	}

	matched, err := e.browser.WaitAny(ctx, e.elementTimeout, e.sel.ResultsContainer, e.sel.NoResults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", district, err)
	}

	if matched == e.sel.NoResults {
		summary, err := e.browser.Text(ctx, e.sel.NoResults)
		if err == nil && strings.Contains(summary, e.sel.NoResultsText) {
			e.logger.Info("[scraper] No listings found in %s", district)
			return nil, nil
		}
		if _, err := e.browser.WaitAny(ctx, e.elementTimeout, e.sel.ResultsContainer); err != nil {
			return nil, fmt.Errorf("%s: results container: %w", district, err)
		}
	}

	html, err := e.browser.OuterHTML(ctx, e.sel.ResultsContainer)
	if err != nil {
		return nil, fmt.Errorf("%s: read results: %w", district, err)
	}

	listings, skipped, err := ParseResults(html, e.baseURL, e.sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", district, err)
	}
	if skipped > 0 {
		e.logger.Warn("[scraper] %s: skipped %d entries without id or link", district, skipped)
	}
	e.logger.Info("[scraper] Found %d listings in %s", len(listings), district)
	return listings, nil
}

// FetchDescription returns the trimmed full description of a listing.
// Transient element failures are retried; the last error is returned once
// the attempts are used up.
func (e *Extractor) FetchDescription(ctx context.Context, listingURL string) (string, error) {
	return utils.Retry(ctx, e.retry, "fetch-description", func(ctx context.Context) (string, error) {
		if err := e.browser.Navigate(ctx, listingURL); err != nil {
			return "", err
		}
		if _, err := e.browser.WaitAny(ctx, e.elementTimeout, e.sel.DescriptionContainer); err != nil {
			return "", err
		}
		text, err := e.browser.Text(ctx, e.sel.DescriptionText)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	})
}

// Err reports whether the underlying browser session is still usable.
func (e *Extractor) Err() error {
	return e.browser.Err()
}

func (e *Extractor) Close() error {
	return e.browser.Close()
}

// districtFromURL returns the district path segment of a search URL.
func districtFromURL(searchURL string) string {
	u, err := url.Parse(searchURL)
	if err != nil {
		return searchURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return u.Path
}
