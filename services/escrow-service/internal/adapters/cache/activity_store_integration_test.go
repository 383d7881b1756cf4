//go:build integration

package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/poetchain/pkg/testhelpers"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/cache"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

func TestRedisActivityStore(t *testing.T) {
	client := testhelpers.NewTestRedis(t)
	store := cache.NewRedisActivityStore(client, 3)
	ctx := context.Background()
	auctionID := uuid.New()

	record := func(i int) {
		require.NoError(t, store.Record(ctx, &escrow.Activity{
			EventID:    fmt.Sprintf("evt-%d", i),
			AuctionID:  auctionID.String(),
			EventType:  "bid.placed",
			Block:      uint64(i),
			OccurredAt: time.Now().UTC(),
			Amount:     fmt.Sprint(i * 10),
		}))
	}

	t.Run("newest first and trimmed", func(t *testing.T) {
		for i := 1; i <= 5; i++ {
			record(i)
		}

		got, err := store.List(ctx, auctionID, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "evt-5", got[0].EventID)
		assert.Equal(t, "evt-3", got[2].EventID)
	})

	t.Run("redelivered events are recorded once", func(t *testing.T) {
		record(5)

		got, err := store.List(ctx, auctionID, 10)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.Equal(t, "evt-5", got[0].EventID)
		assert.Equal(t, "evt-4", got[1].EventID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.List(ctx, auctionID, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("unknown auction is empty", func(t *testing.T) {
		got, err := store.List(ctx, uuid.New(), 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
