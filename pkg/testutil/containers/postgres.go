//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema holds every table the marketplace persists. Integration tests apply
// it once per container; production deployments run the same DDL via their
// migration tooling.
const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id          uuid PRIMARY KEY,
	owner       text NOT NULL,
	creator     text NOT NULL,
	content_ref text NOT NULL,
	created_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS assets_owner_idx ON assets (owner);

CREATE TABLE IF NOT EXISTS listings (
	id                   uuid PRIMARY KEY,
	asset_id             uuid NOT NULL,
	seller               text NOT NULL,
	price                bigint NOT NULL CHECK (price >= 0),
	policy_kind          text NOT NULL,
	policy_duration_days integer NOT NULL DEFAULT 0,
	terms                text NOT NULL DEFAULT '',
	active               boolean NOT NULL,
	created_at           timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_seller_idx ON listings (seller);
CREATE INDEX IF NOT EXISTS listings_active_idx ON listings (created_at) WHERE active;

CREATE TABLE IF NOT EXISTS credentials (
	id                uuid PRIMARY KEY,
	asset_id          uuid NOT NULL,
	holder            text NOT NULL,
	access_type       text NOT NULL,
	granted_at        timestamptz NOT NULL,
	expires_at        timestamptz,
	encrypted_key     bytea NOT NULL,
	source_listing_id uuid NOT NULL,
	issuer            text NOT NULL,
	active            boolean NOT NULL
);
CREATE INDEX IF NOT EXISTS credentials_holder_idx ON credentials (holder);

CREATE TABLE IF NOT EXISTS revenue_accounts (
	principal text PRIMARY KEY,
	balance   bigint NOT NULL DEFAULT 0 CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS outbox (
	id             uuid PRIMARY KEY,
	aggregate_type text NOT NULL,
	aggregate_id   text NOT NULL,
	event_type     text NOT NULL,
	payload        jsonb NOT NULL,
	created_at     timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS outbox_created_at_idx ON outbox (created_at);

CREATE TABLE IF NOT EXISTS audit_events (
	id              uuid PRIMARY KEY,
	category        text NOT NULL,
	timestamp       timestamptz NOT NULL,
	actor           text NOT NULL DEFAULT '',
	subject         text NOT NULL DEFAULT '',
	action          text NOT NULL,
	asset_id        text NOT NULL DEFAULT '',
	listing_id      text NOT NULL DEFAULT '',
	credential_id   text NOT NULL DEFAULT '',
	amount          bigint NOT NULL DEFAULT 0,
	fee             bigint NOT NULL DEFAULT 0,
	reason          text NOT NULL DEFAULT '',
	request_id      text NOT NULL DEFAULT '',
	key_fingerprint text NOT NULL DEFAULT ''
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// applied and an open database handle.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("keymarket_test"),
		tcpostgres.WithUsername("keymarket"),
		tcpostgres.WithPassword("keymarket"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// The container is shared across suites; Ryuk terminates it at the end
	// of the run, so no t.Cleanup here.
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
