package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"apartment-scraper/models"
	"apartment-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func price(v float64) *float64 { return &v }

// memGate is an in-memory ListingGate.
type memGate struct {
	mu        sync.Mutex
	rows      map[string]*models.PersistedListing
	cache     map[string]bool
	saveErr   error
	saves     int
	processed []string
}

func newMemGate(existing ...string) *memGate {
	g := &memGate{rows: map[string]*models.PersistedListing{}, cache: map[string]bool{}}
	for _, id := range existing {
		g.rows[id] = &models.PersistedListing{ListingID: id, Status: models.StatusSuitable}
	}
	return g
}

func (g *memGate) Exists(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.rows[id]
	return ok || g.cache[id], nil
}

func (g *memGate) Save(_ context.Context, l *models.PersistedListing) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.saveErr != nil {
		return 0, g.saveErr
	}
	if _, dup := g.rows[l.ListingID]; dup {
		return 0, errors.New("duplicate key value violates unique constraint")
	}
	row := *l
	row.ID = int64(len(g.rows) + 1)
	row.CreatedAt = time.Now()
	g.rows[l.ListingID] = &row
	return row.ID, nil
}

func (g *memGate) MarkProcessed(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	row, ok := g.rows[id]
	if !ok {
		return errors.New("listing not found")
	}
	if row.ProcessedAt == nil {
		now := time.Now()
		row.ProcessedAt = &now
	}
	g.processed = append(g.processed, id)
	return nil
}

func (g *memGate) MarkError(_ context.Context, l *models.RawListing, msg string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	row, ok := g.rows[l.ListingID]
	if !ok {
		row = &models.PersistedListing{ListingID: l.ListingID, URL: l.URL, CreatedAt: now}
		g.rows[l.ListingID] = row
	}
	row.Status = models.StatusError
	row.Description = "Error: " + msg
	row.ProcessedAt = &now
	return nil
}

func (g *memGate) Remember(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[id] = true
}

func (g *memGate) row(id string) *models.PersistedListing {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rows[id]
}

func (g *memGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

// stubFetcher returns a fixed description or error.
type stubFetcher struct {
	text  string
	err   error
	calls int
}

func (f *stubFetcher) FetchDescription(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

// recordingNotifier counts Notify calls and returns ok.
type recordingNotifier struct {
	ok    bool
	panic bool
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, l *models.RawListing) bool {
	n.calls = append(n.calls, l.ListingID)
	if n.panic {
		panic("telegram exploded")
	}
	return n.ok
}

// fakeSession serves canned results per target URL.
type fakeSession struct {
	stubFetcher
	results    map[string][]models.RawListing
	resultErrs map[string]error
	consentErr error
	dead       error
	fetched    []string
	closed     bool
}

func (s *fakeSession) AcceptConsent(context.Context) error { return s.consentErr }

func (s *fakeSession) FetchResults(_ context.Context, url string) ([]models.RawListing, error) {
	s.fetched = append(s.fetched, url)
	if err := s.resultErrs[url]; err != nil {
		return nil, err
	}
	return s.results[url], nil
}

func (s *fakeSession) Err() error   { return s.dead }
func (s *fakeSession) Close() error { s.closed = true; return nil }

// sleepRecorder replaces utils.Sleep and records every requested duration.
type sleepRecorder struct {
	mu     sync.Mutex
	waits  []time.Duration
	onWait func(d time.Duration)
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	hook := r.onWait
	r.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}
