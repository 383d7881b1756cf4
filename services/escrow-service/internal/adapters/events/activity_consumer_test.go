package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

type fakeRecorder struct {
	err      error
	recorded []*escrow.Activity
}

func (r *fakeRecorder) Record(_ context.Context, a *escrow.Activity) error {
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, a)
	return nil
}

func bidPlacedPayload(t *testing.T, auctionID uuid.UUID) []byte {
	t.Helper()
	payload, err := escrow.EncodeEvent(auctionID, 12, time.Now(), auction.BidPlaced{
		Bidder: common.HexToAddress("0x0000000000000000000000000000000000000b0b"),
		Amount: big.NewInt(99),
	})
	require.NoError(t, err)
	return payload
}

func TestActivityConsumer_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auctionID := uuid.New()

	tests := []struct {
		name        string
		body        []byte
		recorderErr error
		wantAcked   int
		wantNacked  int
		wantRequeue bool
		wantStored  int
	}{
		{name: "records and acks", body: bidPlacedPayload(t, auctionID), wantAcked: 1, wantStored: 1},
		{name: "drops undecodable payloads", body: []byte("garbage"), wantNacked: 1, wantRequeue: false},
		{name: "requeues on store failure", body: bidPlacedPayload(t, auctionID), recorderErr: errors.New("redis down"), wantNacked: 1, wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ack := &fakeAcknowledger{}
			recorder := &fakeRecorder{err: tt.recorderErr}
			consumer := NewActivityConsumer(nil, recorder, logger)
			d := amqp.Delivery{
				Acknowledger: ack,
				MessageId:    "evt-1",
				RoutingKey:   "bid.placed",
				Body:         tt.body,
			}

			// Act
			consumer.handle(context.Background(), d)

			// Assert
			assert.Equal(t, tt.wantAcked, ack.acked)
			assert.Equal(t, tt.wantNacked, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
			require.Len(t, recorder.recorded, tt.wantStored)
			if tt.wantStored > 0 {
				got := recorder.recorded[0]
				assert.Equal(t, "evt-1", got.EventID)
				assert.Equal(t, auctionID.String(), got.AuctionID)
				assert.Equal(t, "99", got.Amount)
				assert.Equal(t, uint64(12), got.Block)
			}
		})
	}
}
