package scraper

import "errors"

var (
	// ErrTimeout means an element or page did not appear within its wait budget.
	ErrTimeout = errors.New("timed out waiting for page element")
	// ErrStaleElement means the DOM changed under a node that was being read.
	ErrStaleElement = errors.New("stale element reference")
	// ErrNotFound means a selector matched nothing on a loaded page.
	ErrNotFound = errors.New("element not found")
	// ErrSessionClosed means the browser itself is gone and the session must be rebuilt.
	ErrSessionClosed = errors.New("browser session closed")
)

// IsTransient reports whether err is an element-level failure worth retrying
// on the same session.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrNotFound)
}
