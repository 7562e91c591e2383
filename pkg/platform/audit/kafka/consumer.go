package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	id "keymarket/pkg/domain"
	audit "keymarket/pkg/platform/audit"
)

// MaterializeStore persists consumed events for querying.
type MaterializeStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Consumer reads audit topics and materializes events into the query table.
// Malformed messages are logged and committed rather than blocking the
// partition; AppendWithID is idempotent so redeliveries are harmless.
type Consumer struct {
	client *kgo.Client
	store  MaterializeStore
	logger *slog.Logger
}

// NewConsumer constructs a consumer over an existing Kafka client. The client
// should be configured with a consumer group and the audit topics.
func NewConsumer(client *kgo.Client, store MaterializeStore, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, store: store, logger: logger}
}

// Run polls Kafka until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "audit fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	eventID, err := uuid.Parse(string(record.Key))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to parse audit event ID, skipping",
			"key", string(record.Key),
			"error", err,
		)
		return
	}

	var payload audit.Payload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		c.logger.ErrorContext(ctx, "failed to unmarshal audit payload, skipping",
			"event_id", eventID,
			"error", err,
		)
		return
	}
	if payload.Action == "" {
		c.logger.ErrorContext(ctx, "audit payload missing action, skipping",
			"event_id", eventID,
		)
		return
	}

	timestamp, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
	if err != nil {
		timestamp = record.Timestamp
	}

	event := audit.Event{
		Category:       audit.EventCategory(payload.Category),
		Timestamp:      timestamp,
		Actor:          id.Principal(payload.Actor),
		Subject:        id.Principal(payload.Subject),
		Action:         payload.Action,
		AssetID:        payload.AssetID,
		ListingID:      payload.ListingID,
		CredentialID:   payload.CredentialID,
		Amount:         payload.Amount,
		Fee:            payload.Fee,
		Reason:         payload.Reason,
		RequestID:      payload.RequestID,
		KeyFingerprint: payload.KeyFingerprint,
	}
	if err := c.store.AppendWithID(ctx, eventID, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to materialize audit event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
	}
}
