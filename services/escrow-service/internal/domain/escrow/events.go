package escrow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// Payload field names shared by encoder and decoder
const (
	fieldEventType      = "event_type"
	fieldAuctionID      = "auction_id"
	fieldBlock          = "block"
	fieldOccurredAt     = "occurred_at"
	fieldSeller         = "seller"
	fieldItemID         = "item_id"
	fieldItem           = "item"
	fieldBidder         = "bidder"
	fieldPreviousBidder = "previous_bidder"
	fieldWinner         = "winner"
	fieldAmount         = "amount"
)

// EncodeEvent serializes an event as a protobuf Struct.
// Amounts and block numbers travel as decimal strings since Struct numbers are float64.
func EncodeEvent(auctionID uuid.UUID, block auction.BlockNumber, at time.Time, event auction.Event) ([]byte, error) {
	fields := map[string]any{
		fieldEventType:  event.EventType().String(),
		fieldAuctionID:  auctionID.String(),
		fieldBlock:      strconv.FormatUint(uint64(block), 10),
		fieldOccurredAt: at.UTC().Format(time.RFC3339Nano),
	}

	switch e := event.(type) {
	case auction.AuctionCreated:
		fields[fieldSeller] = e.Seller.Hex()
		fields[fieldItemID] = e.ItemID.Hex()
		fields[fieldItem] = e.Item
	case auction.BidPlaced:
		fields[fieldBidder] = e.Bidder.Hex()
		fields[fieldAmount] = e.Amount.String()
	case auction.BidRefunded:
		fields[fieldPreviousBidder] = e.PreviousBidder.Hex()
		fields[fieldAmount] = e.Amount.String()
	case auction.AuctionEnded:
		if e.Winner != nil {
			fields[fieldWinner] = e.Winner.Hex()
		} else {
			fields[fieldWinner] = nil
		}
		fields[fieldAmount] = e.Amount.String()
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}

	payload, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// DecodeActivity turns a published payload back into its read-side view
func DecodeActivity(eventID string, payload []byte) (*Activity, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	f := st.GetFields()
	str := func(key string) string { return f[key].GetStringValue() }

	eventType := auction.EventType(str(fieldEventType))
	if !eventType.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	auctionID, err := uuid.Parse(str(fieldAuctionID))
	if err != nil {
		return nil, fmt.Errorf("invalid auction id: %w", err)
	}

	block, err := strconv.ParseUint(str(fieldBlock), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block: %w", err)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, str(fieldOccurredAt))
	if err != nil {
		return nil, fmt.Errorf("invalid occurred_at: %w", err)
	}

	a := &Activity{
		EventID:    eventID,
		AuctionID:  auctionID.String(),
		EventType:  eventType.String(),
		Block:      block,
		OccurredAt: occurredAt,
		Amount:     str(fieldAmount),
	}

	switch eventType {
	case auction.EventTypeAuctionCreated:
		a.Account = str(fieldSeller)
		a.ItemID = str(fieldItemID)
		a.Item = str(fieldItem)
	case auction.EventTypeBidPlaced:
		a.Account = str(fieldBidder)
	case auction.EventTypeBidRefunded:
		a.Account = str(fieldPreviousBidder)
	case auction.EventTypeAuctionEnded:
		a.Account = str(fieldWinner) // empty when nobody bid
	}

	return a, nil
}
