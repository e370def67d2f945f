package storage

import (
	"context"

	"apartment-scraper/models"
)

// ListingStore is the interface any durable listing backend must satisfy.
type ListingStore interface {
	Exists(ctx context.Context, listingID string) (bool, error)
	Save(ctx context.Context, listing *models.PersistedListing) (int64, error)
	MarkProcessed(ctx context.Context, listingID string) error
	MarkError(ctx context.Context, listing *models.RawListing, message string) error
	List(ctx context.Context, status models.Status, limit int) ([]models.PersistedListing, error)
	Close() error
}

// ListingExporter writes stored listings to a flat file.
type ListingExporter interface {
	WriteListings(listings []models.PersistedListing) error
	Close() error
}
