package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

const (
	// DefaultMaxEntries is how many activity entries are kept per auction
	DefaultMaxEntries = 100

	seenTTL = 24 * time.Hour
)

// RedisActivityStore keeps the most recent activity of every auction as a Redis list, newest first
type RedisActivityStore struct {
	client     redis.UniversalClient
	maxEntries int64
}

// NewRedisActivityStore creates a store keeping at most maxEntries per auction
func NewRedisActivityStore(client redis.UniversalClient, maxEntries int64) *RedisActivityStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &RedisActivityStore{client: client, maxEntries: maxEntries}
}

func activityKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:activity", auctionID)
}

func seenKey(eventID string) string {
	return fmt.Sprintf("activity:seen:%s", eventID)
}

// Record appends an entry to its auction's feed. Redelivered events are recorded once.
func (s *RedisActivityStore) Record(ctx context.Context, a *escrow.Activity) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	if a.EventID != "" {
		fresh, err := s.client.SetNX(ctx, seenKey(a.EventID), 1, seenTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to mark event as seen: %w", err)
		}
		if !fresh {
			return nil
		}
	}

	key := activityKey(a.AuctionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, body)
		pipe.LTrim(ctx, key, 0, s.maxEntries-1)
		return nil
	})
	if err != nil {
		// Let a redelivery try again
		if a.EventID != "" {
			_ = s.client.Del(ctx, seenKey(a.EventID)).Err()
		}
		return fmt.Errorf("failed to push activity: %w", err)
	}
	return nil
}

// List returns up to limit entries of an auction's feed, newest first
func (s *RedisActivityStore) List(ctx context.Context, auctionID uuid.UUID, limit int64) ([]*escrow.Activity, error) {
	if limit <= 0 || limit > s.maxEntries {
		limit = s.maxEntries
	}

	raw, err := s.client.LRange(ctx, activityKey(auctionID.String()), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}

	out := make([]*escrow.Activity, 0, len(raw))
	for _, item := range raw {
		var a escrow.Activity
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
		}
		out = append(out, &a)
	}
	return out, nil
}
