package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// PostgresStore persists assets in PostgreSQL. Execute and Remove take a row
// lock (FOR UPDATE) for the duration of validate+mutate, matching the
// in-memory store's atomicity.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Asset) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, owner, creator, content_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(a.ID), string(a.Owner), string(a.Creator), a.ContentRef, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert asset rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, assetID id.AssetID) (*Asset, error) {
	return scanAsset(s.db.QueryRowContext(ctx, `
		SELECT id, owner, creator, content_ref, created_at
		FROM assets WHERE id = $1
	`, uuid.UUID(assetID)))
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.Principal) ([]*Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, creator, content_ref, created_at
		FROM assets WHERE owner = $1 ORDER BY created_at
	`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list assets by owner: %w", err)
	}
	defer rows.Close()
	var assets []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, assetID id.AssetID, validate func(*Asset) error, mutate func(*Asset)) (*Asset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin asset tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	a, err := scanAsset(tx.QueryRowContext(ctx, `
		SELECT id, owner, creator, content_ref, created_at
		FROM assets WHERE id = $1 FOR UPDATE
	`, uuid.UUID(assetID)))
	if err != nil {
		return nil, err
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)

	_, err = tx.ExecContext(ctx, `
		UPDATE assets SET owner = $2, content_ref = $3 WHERE id = $1
	`, uuid.UUID(a.ID), string(a.Owner), a.ContentRef)
	if err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit asset tx: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Remove(ctx context.Context, assetID id.AssetID, validate func(*Asset) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin asset tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	a, err := scanAsset(tx.QueryRowContext(ctx, `
		SELECT id, owner, creator, content_ref, created_at
		FROM assets WHERE id = $1 FOR UPDATE
	`, uuid.UUID(assetID)))
	if err != nil {
		return err
	}
	if err := validate(a); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, uuid.UUID(assetID)); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var assetID uuid.UUID
	var owner, creator string
	err := row.Scan(&assetID, &owner, &creator, &a.ContentRef, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.ID = id.AssetID(assetID)
	a.Owner = id.Principal(owner)
	a.Creator = id.Principal(creator)
	return &a, nil
}
