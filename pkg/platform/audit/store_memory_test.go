package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryCompliance, CategoryOf(EventPurchaseCompleted))
	assert.Equal(t, CategoryCompliance, CategoryOf(EventEarningsWithdrawn))
	assert.Equal(t, CategoryCompliance, CategoryOf(EventAccessGranted))
	assert.Equal(t, CategorySecurity, CategoryOf(EventAccessRevoked))
	assert.Equal(t, CategoryOperations, CategoryOf(EventAssetMinted))
	assert.Equal(t, CategoryOperations, CategoryOf("something_new"), "unknown actions default to operations")
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	t.Run("append fills category and timestamp", func(t *testing.T) {
		err := store.Append(ctx, Event{Action: EventPurchaseCompleted, Actor: "bob"})
		require.NoError(t, err)

		events, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("explicit timestamp preserved", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		err := store.Append(ctx, Event{Action: EventAssetMinted, Timestamp: at})
		require.NoError(t, err)

		events, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, at, events[len(events)-1].Timestamp)
	})

	t.Run("list limit returns the newest events", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, store.Append(ctx, Event{Action: EventListingCreated}))
		}
		events, err := store.List(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("list returns a copy", func(t *testing.T) {
		events, err := store.List(ctx, 0)
		require.NoError(t, err)
		before := len(events)
		events[0].Action = "mutated"

		again, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, again, before)
		assert.NotEqual(t, "mutated", again[0].Action)
	})
}
