package revenue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "keymarket/pkg/domain"
	"keymarket/pkg/platform/sentinel"
)

// platformAccount is the reserved row aggregating fee income. The "@" prefix
// keeps it out of the space of real principals.
const platformAccount = "@platform"

// PostgresStore persists balances in PostgreSQL. Row locks serialize
// record_sale against withdraw per account.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Credit(ctx context.Context, seller id.Principal, sellerAmount, platformFee uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsert = `
		INSERT INTO revenue_accounts (principal, balance) VALUES ($1, $2)
		ON CONFLICT (principal) DO UPDATE SET balance = revenue_accounts.balance + EXCLUDED.balance
	`
	if _, err := tx.ExecContext(ctx, upsert, string(seller), sellerAmount); err != nil {
		return fmt.Errorf("credit seller: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, platformAccount, platformFee); err != nil {
		return fmt.Errorf("credit platform: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) Balance(ctx context.Context, principal id.Principal) (uint64, error) {
	return s.balanceOf(ctx, string(principal))
}

func (s *PostgresStore) PlatformBalance(ctx context.Context) (uint64, error) {
	return s.balanceOf(ctx, platformAccount)
}

func (s *PostgresStore) balanceOf(ctx context.Context, account string) (uint64, error) {
	var balance uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM revenue_accounts WHERE principal = $1`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) WithdrawAll(ctx context.Context, principal id.Principal) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin withdraw tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance uint64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM revenue_accounts WHERE principal = $1 FOR UPDATE`,
		string(principal)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock account: %w", err)
	}
	if balance > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE revenue_accounts SET balance = 0 WHERE principal = $1`,
			string(principal)); err != nil {
			return 0, fmt.Errorf("zero balance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit withdraw tx: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) WithdrawPlatform(ctx context.Context, amount uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin platform withdraw tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance uint64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM revenue_accounts WHERE principal = $1 FOR UPDATE`,
		platformAccount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("lock platform account: %w", err)
	}
	if amount > balance {
		return sentinel.ErrInvalidState
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE revenue_accounts SET balance = balance - $2 WHERE principal = $1`,
		platformAccount, amount); err != nil {
		return fmt.Errorf("debit platform balance: %w", err)
	}
	return tx.Commit()
}
