package storage

import (
	"context"

	"apartment-scraper/models"
	"apartment-scraper/utils"
)

// Gate answers "has this listing been handled" from the durable store and an
// in-run cache, and forwards state transitions to the store. The cache only
// saves queries within one run; the store stays the source of truth.
type Gate struct {
	store ListingStore
	seen  *utils.IDSet
}

// NewGate wraps store with an empty in-run cache.
func NewGate(store ListingStore) *Gate {
	return &Gate{store: store, seen: utils.NewIDSet()}
}

// Exists is true if the listing was handled in this run or has a stored row.
func (g *Gate) Exists(ctx context.Context, listingID string) (bool, error) {
	if g.seen.Contains(listingID) {
		return true, nil
	}
	return g.store.Exists(ctx, listingID)
}

func (g *Gate) Save(ctx context.Context, l *models.PersistedListing) (int64, error) {
	return g.store.Save(ctx, l)
}

func (g *Gate) MarkProcessed(ctx context.Context, listingID string) error {
	return g.store.MarkProcessed(ctx, listingID)
}

func (g *Gate) MarkError(ctx context.Context, l *models.RawListing, message string) error {
	return g.store.MarkError(ctx, l, message)
}

// Remember adds listingID to the in-run cache.
func (g *Gate) Remember(listingID string) {
	g.seen.Add(listingID)
}

// Seen returns how many listings this run has handled.
func (g *Gate) Seen() int {
	return g.seen.Size()
}
