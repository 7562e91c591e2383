package audit

import "context"

// Store is the append-only event sink every registry emits into. Appends are
// fail-closed for compliance events: callers on the settlement path must abort
// their operation when Append fails.
type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns the most recent events, newest last, up to limit.
	// limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]Event, error)
}
