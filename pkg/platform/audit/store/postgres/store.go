package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "keymarket/pkg/domain"
	audit "keymarket/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker; the consumer materializes them into audit_events for querying.
// Kafka is the source of truth for the event history.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Category is always derived from the action; the eventCategories map is
	// the source of truth.
	event.Category = audit.CategoryOf(event.Action)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payloadBytes, err := json.Marshal(audit.NewPayload(eventID.String(), event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Settlements aggregate on the listing so replays can be ordered per
	// listing; everything else aggregates on the event itself.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.ListingID != "" {
		aggregateType = "listing"
		aggregateID = event.ListingID
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// List reads recent materialized events from audit_events, newest last.
func (s *Store) List(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, actor, subject, action,
		       asset_id, listing_id, credential_id,
		       amount, fee, reason, request_id, key_fingerprint
		FROM audit_events
		ORDER BY timestamp DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var category, actor, subject string
		if err := rows.Scan(
			&category, &e.Timestamp, &actor, &subject, &e.Action,
			&e.AssetID, &e.ListingID, &e.CredentialID,
			&e.Amount, &e.Fee, &e.Reason, &e.RequestID, &e.KeyFingerprint,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Actor = id.Principal(actor)
		e.Subject = id.Principal(subject)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	// Newest last for consistency with the in-memory store.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// AppendWithID inserts a materialized audit event with a specific ID.
// Used by the Kafka consumer; idempotent via ON CONFLICT DO NOTHING so
// redeliveries do not duplicate rows.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, actor, subject, action,
			asset_id, listing_id, credential_id,
			amount, fee, reason, request_id, key_fingerprint
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		string(event.Actor),
		string(event.Subject),
		event.Action,
		event.AssetID,
		event.ListingID,
		event.CredentialID,
		event.Amount,
		event.Fee,
		event.Reason,
		event.RequestID,
		event.KeyFingerprint,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
