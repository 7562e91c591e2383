package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// PostgresStore persists listings in PostgreSQL. Execute takes a row lock
// (FOR UPDATE) for the duration of validate+mutate, so the Active flag flips
// exactly once even under concurrent settlements across instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const listingColumns = `id, asset_id, seller, price, policy_kind, policy_duration_days, terms, active, created_at`

func (s *PostgresStore) Create(ctx context.Context, l *Listing) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(l.ID), uuid.UUID(l.AssetID), string(l.Seller), l.Price,
		string(l.Policy.Kind), l.Policy.DurationDays, l.Terms, l.Active, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert listing rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, listingID id.ListingID) (*Listing, error) {
	return scanListing(s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, uuid.UUID(listingID)))
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Listing, error) {
	return s.queryListings(ctx, `SELECT `+listingColumns+` FROM listings WHERE active ORDER BY created_at`)
}

func (s *PostgresStore) ListBySeller(ctx context.Context, seller id.Principal) ([]*Listing, error) {
	return s.queryListings(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE seller = $1 ORDER BY created_at`, string(seller))
}

func (s *PostgresStore) queryListings(ctx context.Context, query string, args ...any) ([]*Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()
	var listings []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, listingID id.ListingID, validate func(*Listing) error, mutate func(*Listing)) (*Listing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin listing tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	l, err := scanListing(tx.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, uuid.UUID(listingID)))
	if err != nil {
		return nil, err
	}
	if err := validate(l); err != nil {
		return nil, err
	}
	mutate(l)

	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET price = $2, terms = $3, active = $4 WHERE id = $1
	`, uuid.UUID(l.ID), l.Price, l.Terms, l.Active)
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit listing tx: %w", err)
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var l Listing
	var listingID, assetID uuid.UUID
	var seller, policyKind string
	err := row.Scan(&listingID, &assetID, &seller, &l.Price,
		&policyKind, &l.Policy.DurationDays, &l.Terms, &l.Active, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	l.ID = id.ListingID(listingID)
	l.AssetID = id.AssetID(assetID)
	l.Seller = id.Principal(seller)
	l.Policy.Kind = PolicyKind(policyKind)
	return &l, nil
}
