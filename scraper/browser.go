package scraper

import (
	"context"
	"time"
)

// Browser is the automation capability the extractor drives. Selectors are
// CSS selectors evaluated against the rendered document.
type Browser interface {
	// Navigate loads url, bounded by the page-load timeout.
	Navigate(ctx context.Context, url string) error
	// WaitAny blocks until one of selectors matches and returns it.
	// It returns ErrTimeout when none matches within timeout.
	WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (string, error)
	// Text returns the rendered text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute returns the named attribute of the first match.
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	// OuterHTML returns the markup of the first match.
	OuterHTML(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	// Err reports ErrSessionClosed once the underlying browser is gone.
	Err() error
	Close() error
}
