package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-scraper/config"
	"apartment-scraper/utils"
)

// fakeBrowser is a scripted Browser.
type fakeBrowser struct {
	wait      func(selectors []string) (string, error)
	texts     map[string]string
	textErr   error
	html      string
	navigated []string
	clicked   []string
	closed    bool
	dead      error
}

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.navigated = append(b.navigated, url)
	return b.dead
}

func (b *fakeBrowser) WaitAny(_ context.Context, _ time.Duration, selectors ...string) (string, error) {
	return b.wait(selectors)
}

func (b *fakeBrowser) Text(_ context.Context, selector string) (string, error) {
	if b.textErr != nil {
		return "", b.textErr
	}
	text, ok := b.texts[selector]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (b *fakeBrowser) Attribute(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (b *fakeBrowser) OuterHTML(context.Context, string) (string, error) { return b.html, nil }

func (b *fakeBrowser) Click(_ context.Context, selector string) error {
	b.clicked = append(b.clicked, selector)
	return nil
}

func (b *fakeBrowser) Err() error   { return b.dead }
func (b *fakeBrowser) Close() error { b.closed = true; return nil }

func matchFirst(selectors []string) (string, error) { return selectors[0], nil }

func timeoutAlways([]string) (string, error) { return "", ErrTimeout }

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:               baseURL,
		Selectors:             config.DefaultSelectors(),
		ElementTimeout:        time.Second,
		DescriptionRetries:    3,
		DescriptionRetryDelay: time.Millisecond,
	}
}

const searchURL = baseURL + "/s-wohnung-mieten/neustadt/preis::973/c203l41"

func TestFetchResults_ParsesContainer(t *testing.T) {
	b := &fakeBrowser{wait: matchFirst, html: resultsHTML}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	listings, err := e.FetchResults(context.Background(), searchURL)

	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, []string{searchURL}, b.navigated)
}

func TestFetchResults_NoResultsMarker(t *testing.T) {
	sel := config.DefaultSelectors()
	b := &fakeBrowser{
		wait:  func([]string) (string, error) { return sel.NoResults, nil },
		texts: map[string]string{sel.NoResults: "Es wurden keine Ergebnisse für deine Suche gefunden"},
	}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	listings, err := e.FetchResults(context.Background(), searchURL)

	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFetchResults_SummaryWithoutMarkerWaitsForContainer(t *testing.T) {
	sel := config.DefaultSelectors()
	calls := 0
	b := &fakeBrowser{
		wait: func(selectors []string) (string, error) {
			calls++
			if calls == 1 {
				return sel.NoResults, nil
			}
			return selectors[0], nil
		},
		texts: map[string]string{sel.NoResults: "12 Ergebnisse"},
		html:  resultsHTML,
	}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	listings, err := e.FetchResults(context.Background(), searchURL)

	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, 2, calls)
}

func TestFetchResults_Timeout(t *testing.T) {
	b := &fakeBrowser{wait: timeoutAlways}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	listings, err := e.FetchResults(context.Background(), searchURL)

	assert.Empty(t, listings)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFetchDescription_RetriesThenFails(t *testing.T) {
	b := &fakeBrowser{wait: timeoutAlways}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	_, err := e.FetchDescription(context.Background(), "https://example.com/1")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, b.navigated, 3)
}

func TestFetchDescription_WaitsFixedDelayBetweenAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.DescriptionRetryDelay = 2 * time.Second
	b := &fakeBrowser{wait: timeoutAlways}
	e := NewExtractor(b, cfg, utils.NewNopLogger())

	var waits []time.Duration
	e.retry.Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}

	_, err := e.FetchDescription(context.Background(), "https://example.com/1")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, b.navigated, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
}

func TestFetchDescription_RecoversOnSecondAttempt(t *testing.T) {
	sel := config.DefaultSelectors()
	attempts := 0
	b := &fakeBrowser{
		wait: func(selectors []string) (string, error) {
			attempts++
			if attempts == 1 {
				return "", ErrStaleElement
			}
			return selectors[0], nil
		},
		texts: map[string]string{sel.DescriptionText: "\n  Schöne Wohnung mit Balkon.  \n"},
	}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	text, err := e.FetchDescription(context.Background(), "https://example.com/1")

	require.NoError(t, err)
	assert.Equal(t, "Schöne Wohnung mit Balkon.", text)
	assert.Equal(t, 2, attempts)
}

func TestFetchDescription_SessionLossIsNotRetried(t *testing.T) {
	b := &fakeBrowser{wait: matchFirst, dead: ErrSessionClosed}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	_, err := e.FetchDescription(context.Background(), "https://example.com/1")

	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Len(t, b.navigated, 1)
	assert.ErrorIs(t, e.Err(), ErrSessionClosed)
}

func TestAcceptConsent_NoBanner(t *testing.T) {
	b := &fakeBrowser{wait: timeoutAlways}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	require.NoError(t, e.AcceptConsent(context.Background()))
	assert.Equal(t, []string{baseURL}, b.navigated)
	assert.Empty(t, b.clicked)
}

func TestAcceptConsent_ClicksBanner(t *testing.T) {
	b := &fakeBrowser{wait: matchFirst}
	e := NewExtractor(b, testConfig(), utils.NewNopLogger())

	require.NoError(t, e.AcceptConsent(context.Background()))
	assert.Equal(t, []string{config.DefaultSelectors().ConsentButton}, b.clicked)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrTimeout))
	assert.True(t, IsTransient(errors.Join(errors.New("wrap"), ErrStaleElement)))
	assert.True(t, IsTransient(ErrNotFound))
	assert.False(t, IsTransient(ErrSessionClosed))
	assert.False(t, IsTransient(context.Canceled))
}

func TestDistrictFromURL(t *testing.T) {
	assert.Equal(t, "neustadt", districtFromURL(searchURL))
}
