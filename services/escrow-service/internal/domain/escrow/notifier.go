package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/poetchain/pkg/events"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// outboxNotifier buffers the events of one call.
// They are written to the outbox by flush, inside the call's transaction, once the call succeeded.
type outboxNotifier struct {
	auctionID uuid.UUID
	pending   []auction.Event
}

func newOutboxNotifier(auctionID uuid.UUID) *outboxNotifier {
	return &outboxNotifier{auctionID: auctionID}
}

func (n *outboxNotifier) Emit(_ context.Context, event auction.Event) {
	n.pending = append(n.pending, event)
}

func (n *outboxNotifier) flush(ctx context.Context, tx pgx.Tx, repo OutboxRepository, block auction.BlockNumber) error {
	for _, event := range n.pending {
		now := time.Now()
		payload, err := EncodeEvent(n.auctionID, block, now, event)
		if err != nil {
			return err
		}

		outboxEvent := &events.OutboxEvent{
			ID:          uuid.New(),
			AggregateID: n.auctionID,
			EventType:   event.EventType().String(),
			Payload:     payload,
			Status:      events.OutboxStatusPending,
			CreatedAt:   now,
		}
		if err := repo.SaveEvent(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
	}
	n.pending = nil
	return nil
}
