package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// PostgresStore persists credentials in PostgreSQL. The holder index is the
// holder column; Execute locks the row for validate+mutate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `id, asset_id, holder, access_type, granted_at, expires_at, encrypted_key, source_listing_id, issuer, active`

func (s *PostgresStore) Create(ctx context.Context, c *Credential) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, uuid.UUID(c.ID), uuid.UUID(c.AssetID), string(c.Holder), string(c.AccessType),
		c.GrantedAt, c.ExpiresAt, c.EncryptedKey, uuid.UUID(c.SourceListingID), string(c.Issuer), c.Active)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*Credential, error) {
	return scanCredential(s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, uuid.UUID(credentialID)))
}

func (s *PostgresStore) ListByHolder(ctx context.Context, holder id.Principal) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE holder = $1 ORDER BY granted_at`, string(holder))
	if err != nil {
		return nil, fmt.Errorf("list credentials by holder: %w", err)
	}
	defer rows.Close()
	var held []*Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		held = append(held, c)
	}
	return held, rows.Err()
}

func (s *PostgresStore) Execute(ctx context.Context, credentialID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credential tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	c, err := scanCredential(tx.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1 FOR UPDATE`, uuid.UUID(credentialID)))
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	_, err = tx.ExecContext(ctx, `
		UPDATE credentials SET holder = $2, active = $3 WHERE id = $1
	`, uuid.UUID(c.ID), string(c.Holder), c.Active)
	if err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credential tx: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var c Credential
	var credentialID, assetID, sourceListingID uuid.UUID
	var holder, accessType, issuer string
	var expiresAt sql.NullTime
	err := row.Scan(&credentialID, &assetID, &holder, &accessType, &c.GrantedAt,
		&expiresAt, &c.EncryptedKey, &sourceListingID, &issuer, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	c.ID = id.CredentialID(credentialID)
	c.AssetID = id.AssetID(assetID)
	c.SourceListingID = id.ListingID(sourceListingID)
	c.Holder = id.Principal(holder)
	c.AccessType = AccessType(accessType)
	c.Issuer = id.Principal(issuer)
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		c.ExpiresAt = &t
	}
	return &c, nil
}
