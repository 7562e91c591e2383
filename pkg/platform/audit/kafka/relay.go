// Package kafka moves audit events between the Postgres outbox and Kafka.
//
// The Relay polls the outbox table and publishes each entry to the topic for
// its category; the Consumer reads the topics back and materializes events
// into audit_events. Kafka is the durable source of truth for the event
// history, per the transactional outbox pattern.
package kafka

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "keymarket/pkg/platform/audit"
)

// Topics maps event categories to Kafka topics.
type Topics struct {
	Compliance string
	Security   string
	Operations string
}

// DefaultTopics returns the conventional topic names.
func DefaultTopics() Topics {
	return Topics{
		Compliance: "keymarket.audit.compliance",
		Security:   "keymarket.audit.security",
		Operations: "keymarket.audit.operations",
	}
}

func (t Topics) forCategory(category string) string {
	switch audit.EventCategory(category) {
	case audit.CategoryCompliance:
		return t.Compliance
	case audit.CategorySecurity:
		return t.Security
	default:
		return t.Operations
	}
}

func (t Topics) all() []string {
	return []string{t.Compliance, t.Security, t.Operations}
}

// Relay publishes outbox entries to Kafka and deletes them once acknowledged.
// Run one relay per deployment; the outbox row lock keeps concurrent relays
// from double-publishing, but a single instance is the intended shape.
type Relay struct {
	db           *sql.DB
	client       *kgo.Client
	topics       Topics
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithPollInterval overrides the outbox polling interval.
func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.pollInterval = d }
}

// WithBatchSize overrides how many outbox rows are claimed per poll.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

// NewRelay constructs a relay over an existing Kafka client.
func NewRelay(db *sql.DB, client *kgo.Client, topics Topics, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		db:           db,
		client:       client,
		topics:       topics,
		logger:       logger,
		pollInterval: time.Second,
		batchSize:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureTopics creates the audit topics if they do not exist yet.
func EnsureTopics(ctx context.Context, client *kgo.Client, topics Topics) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 3, 1, nil, topics.all()...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.publishBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox publish batch failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id        string
	eventType string
	payload   []byte
}

// publishBatch claims a batch of outbox rows, publishes them synchronously,
// and deletes the published rows in the same transaction.
func (r *Relay) publishBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM outbox
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}
	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.eventType, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, row := range batch {
		var envelope struct {
			ID       string `json:"ID"`
			Category string `json:"Category"`
		}
		if err := json.Unmarshal(row.payload, &envelope); err != nil {
			// Malformed rows are deleted rather than blocking the stream.
			r.logger.ErrorContext(ctx, "malformed outbox payload, dropping",
				"outbox_id", row.id,
				"error", err,
			)
			continue
		}
		record := &kgo.Record{
			Topic: r.topics.forCategory(envelope.Category),
			Key:   []byte(envelope.ID),
			Value: row.payload,
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit event %s: %w", envelope.ID, err)
		}
	}

	ids := make([]any, 0, len(batch))
	placeholders := ""
	for i, row := range batch {
		if i > 0 {
			placeholders += ","
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		ids = append(ids, row.id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM outbox WHERE id IN ("+placeholders+")", ids...); err != nil {
		return fmt.Errorf("delete published outbox rows: %w", err)
	}
	return tx.Commit()
}
