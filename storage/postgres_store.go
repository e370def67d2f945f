package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"apartment-scraper/models"
	"apartment-scraper/utils"
)

const (
	pingAttempts    = 10
	pingDelay       = 2 * time.Second
	connMaxLifetime = 5 * time.Minute
)

const listingColumns = `id, listing_id, title, price, size, rooms, location, url,
	status, description, created_at, processed_at`

var _ ListingStore = (*PostgresStore)(nil)

// PostgresStore persists listings to PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a bounded connection pool, waits for the server to
// answer and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns < 1 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if sleepErr := utils.Sleep(ctx, pingDelay); sleepErr != nil {
			err = sleepErr
			break
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the listings table and its indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS listings (
				id           SERIAL PRIMARY KEY,
				listing_id   TEXT          UNIQUE NOT NULL,
				title        TEXT          NOT NULL DEFAULT '',
				price        NUMERIC(10,2),
				size         NUMERIC(8,2),
				rooms        NUMERIC(4,1),
				location     TEXT          NOT NULL DEFAULT '',
				url          TEXT          NOT NULL,
				status       VARCHAR(20)   NOT NULL DEFAULT 'new'
				             CHECK (status IN ('new', 'suitable', 'error')),
				description  TEXT          NOT NULL DEFAULT '',
				created_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
				processed_at TIMESTAMPTZ
			);

			CREATE INDEX IF NOT EXISTS idx_listings_status     ON listings(status);
			CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at);
		`)
		if err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
		return nil
	})
}

// Exists reports whether a row for listingID has ever been written.
func (s *PostgresStore) Exists(ctx context.Context, listingID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM listings WHERE listing_id = $1)`, listingID)
	if err != nil {
		return false, &PersistenceError{Op: "exists", ListingID: listingID, Err: err}
	}
	return exists, nil
}

// Save inserts a new listing and returns its surrogate id. It never updates
// an existing row; callers check Exists first.
func (s *PostgresStore) Save(ctx context.Context, l *models.PersistedListing) (int64, error) {
	status := l.Status
	if status == "" {
		status = models.StatusNew
	}

	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, `
			INSERT INTO listings (
				listing_id, title, price, size, rooms,
				location, url, status, description
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			l.ListingID, l.Title, l.Price, l.Size, l.Rooms,
			l.Location, l.URL, string(status), l.Description,
		).Scan(&id)
	})
	if err != nil {
		return 0, &PersistenceError{Op: "save", ListingID: l.ListingID, Err: err}
	}
	return id, nil
}

// MarkProcessed stamps processed_at. A second call keeps the first timestamp.
func (s *PostgresStore) MarkProcessed(ctx context.Context, listingID string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE listings SET processed_at = COALESCE(processed_at, NOW()) WHERE listing_id = $1`,
			listingID)
		return execRequireRows(res, err, ErrListingNotFound)
	})
	if err != nil {
		return &PersistenceError{Op: "mark processed", ListingID: listingID, Err: err}
	}
	return nil
}

// MarkError records a terminal failure for a listing. The row is created when
// the failure happened before it could be saved, so the listing is not picked
// up again on the next cycle.
func (s *PostgresStore) MarkError(ctx context.Context, l *models.RawListing, message string) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO listings (
				listing_id, title, price, size, rooms,
				location, url, status, description, processed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 'error', $8, NOW())
			ON CONFLICT (listing_id) DO UPDATE
			SET status = 'error', description = EXCLUDED.description, processed_at = NOW()`,
			l.ListingID, l.Title, l.Price, l.Size, l.Rooms,
			l.Location, l.URL, "Error: "+message,
		)
		return err
	})
	if err != nil {
		return &PersistenceError{Op: "mark error", ListingID: l.ListingID, Err: err}
	}
	return nil
}

// List returns the newest listings, optionally filtered by status.
func (s *PostgresStore) List(ctx context.Context, status models.Status, limit int) ([]models.PersistedListing, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, string(status), limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	var listings []models.PersistedListing
	if err := s.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return listings, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction: commit on success, roll back on error or
// panic. The connection goes back to the pool on every path.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
