package auction

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventType_String tests the String method of EventType
func TestEventType_String(t *testing.T) {
	// Arrange
	eventType := EventTypeBidPlaced

	// Act
	result := eventType.String()

	// Assert
	assert.Equal(t, "bid.placed", result, "EventType.String() should return the correct string representation")
}

// TestEventType_IsValid tests the IsValid method of EventType
func TestEventType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		want      bool
	}{
		{name: "valid event type - auction.created", eventType: EventTypeAuctionCreated, want: true},
		{name: "valid event type - bid.placed", eventType: EventTypeBidPlaced, want: true},
		{name: "valid event type - bid.refunded", eventType: EventTypeBidRefunded, want: true},
		{name: "valid event type - auction.ended", eventType: EventTypeAuctionEnded, want: true},
		{name: "invalid event type - unknown", eventType: EventType("unknown.event"), want: false},
		{name: "invalid event type - empty string", eventType: EventType(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.eventType.IsValid()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvents_ReportTheirType(t *testing.T) {
	assert.Equal(t, EventTypeAuctionCreated, AuctionCreated{}.EventType())
	assert.Equal(t, EventTypeBidPlaced, BidPlaced{}.EventType())
	assert.Equal(t, EventTypeBidRefunded, BidRefunded{}.EventType())
	assert.Equal(t, EventTypeAuctionEnded, AuctionEnded{}.EventType())
}

func TestDigestItem(t *testing.T) {
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		DigestItem("").Hex())
	assert.Equal(t,
		"0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
		DigestItem("hello").Hex())
	assert.Equal(t, DigestItem(testPoem), DigestItem(testPoem), "digest is deterministic")
	assert.NotEqual(t, DigestItem(testPoem), DigestItem(testPoem+"."))
}

func TestItemIDFromBytes(t *testing.T) {
	id := DigestItem(testPoem)

	got, err := ItemIDFromBytes(id[:])
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ItemIDFromBytes(id[:31])
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	bidder := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	valid := State{
		ItemID:        DigestItem(testPoem),
		Item:          testPoem,
		Seller:        common.HexToAddress("0x00000000000000000000000000000000000a11ce"),
		EndTime:       100,
		HighestBid:    big.NewInt(1000),
		HighestBidder: &bidder,
		Active:        true,
	}

	tests := []struct {
		name    string
		mutate  func(s *State)
		wantErr bool
	}{
		{name: "valid state with a bid", mutate: func(s *State) {}, wantErr: false},
		{
			name: "valid state without a bid",
			mutate: func(s *State) {
				s.HighestBid = nil
				s.HighestBidder = nil
			},
			wantErr: false,
		},
		{name: "item id does not match item", mutate: func(s *State) { s.Item = "tampered" }, wantErr: true},
		{name: "empty item", mutate: func(s *State) { s.Item = "" }, wantErr: true},
		{name: "bid without bidder", mutate: func(s *State) { s.HighestBidder = nil }, wantErr: true},
		{name: "bidder without bid", mutate: func(s *State) { s.HighestBid = big.NewInt(0) }, wantErr: true},
		{name: "negative bid", mutate: func(s *State) { s.HighestBid = big.NewInt(-1) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)

			a, err := Restore(s)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidState)
				assert.Nil(t, a)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, s.Item, a.Item())
		})
	}
}

func TestAuction_StateIsACopy(t *testing.T) {
	bidder := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	a, err := Restore(State{
		ItemID:        DigestItem(testPoem),
		Item:          testPoem,
		EndTime:       100,
		HighestBid:    big.NewInt(1000),
		HighestBidder: &bidder,
		Active:        true,
	})
	require.NoError(t, err)

	s := a.State()
	s.HighestBid.SetInt64(1)
	*s.HighestBidder = common.Address{}

	winner, amount := a.Winner()
	assert.Equal(t, bidder, *winner)
	assert.Equal(t, int64(1000), amount.Int64())
}
