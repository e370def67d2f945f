package models

import "time"

// Status is the lifecycle state of a stored listing.
type Status string

const (
	StatusNew      Status = "new"
	StatusSuitable Status = "suitable"
	StatusError    Status = "error"
)

// RawListing holds the data collected from a search results page.
// Price, Size and Rooms are nil when the page did not expose them.
// Description starts as the preview text and is replaced by the full
// detail-page text once it has been fetched.
type RawListing struct {
	ListingID   string
	URL         string
	Title       string
	Location    string
	Price       *float64
	Size        *float64
	Rooms       *float64
	Description string
}

// Valid reports whether the record carries the fields required to enter the pipeline.
func (r *RawListing) Valid() bool {
	return r.ListingID != "" && r.URL != ""
}

// PersistedListing is a RawListing as stored in PostgreSQL.
type PersistedListing struct {
	ID          int64      `db:"id"`
	ListingID   string     `db:"listing_id"`
	Title       string     `db:"title"`
	Price       *float64   `db:"price"`
	Size        *float64   `db:"size"`
	Rooms       *float64   `db:"rooms"`
	Location    string     `db:"location"`
	URL         string     `db:"url"`
	Status      Status     `db:"status"`
	Description string     `db:"description"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

// NewPersistedListing builds the row to insert for a raw listing.
func NewPersistedListing(r *RawListing, status Status) *PersistedListing {
	if status == "" {
		status = StatusNew
	}
	return &PersistedListing{
		ListingID:   r.ListingID,
		Title:       r.Title,
		Price:       r.Price,
		Size:        r.Size,
		Rooms:       r.Rooms,
		Location:    r.Location,
		URL:         r.URL,
		Status:      status,
		Description: r.Description,
	}
}

// CycleStats counts what happened during one search cycle.
type CycleStats struct {
	TotalFound int
	Processed  int
	Errors     int
}
