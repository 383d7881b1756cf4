package auction

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BlockNumber is the host's unit of time
type BlockNumber uint64

// MaxBlockNumber is the largest representable block number
const MaxBlockNumber = BlockNumber(math.MaxUint64)

// ItemID is the Keccak-256 digest of a listed item
type ItemID [32]byte

// Hex returns the 0x-prefixed hex encoding of the digest
func (id ItemID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String implements fmt.Stringer
func (id ItemID) String() string {
	return id.Hex()
}

// ItemIDFromBytes converts a stored digest back into an ItemID
func ItemIDFromBytes(b []byte) (ItemID, error) {
	var id ItemID
	if len(b) != len(id) {
		return id, fmt.Errorf("item id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Auction is a single-item escrow auction.
// Fields are unexported so that every mutation goes through Service.
type Auction struct {
	itemID        ItemID
	item          string
	seller        common.Address
	endTime       BlockNumber
	highestBid    *big.Int
	highestBidder *common.Address
	active        bool
}

// State is the persisted form of an Auction
type State struct {
	ItemID        ItemID
	Item          string
	Seller        common.Address
	EndTime       BlockNumber
	HighestBid    *big.Int
	HighestBidder *common.Address
	Active        bool
}

// Restore rebuilds an Auction from stored state, rejecting state that breaks the invariants
func Restore(s State) (*Auction, error) {
	if s.Item == "" {
		return nil, fmt.Errorf("%w: empty item", ErrInvalidState)
	}
	if DigestItem(s.Item) != s.ItemID {
		return nil, fmt.Errorf("%w: item id does not match item", ErrInvalidState)
	}

	bid := new(big.Int)
	if s.HighestBid != nil {
		bid.Set(s.HighestBid)
	}
	if bid.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative highest bid", ErrInvalidState)
	}
	if (s.HighestBidder != nil) != (bid.Sign() > 0) {
		return nil, fmt.Errorf("%w: highest bidder must be set iff highest bid is positive", ErrInvalidState)
	}

	a := &Auction{
		itemID:     s.ItemID,
		item:       s.Item,
		seller:     s.Seller,
		endTime:    s.EndTime,
		highestBid: bid,
		active:     s.Active,
	}
	if s.HighestBidder != nil {
		bidder := *s.HighestBidder
		a.highestBidder = &bidder
	}
	return a, nil
}

// State returns a copy of the auction's current state
func (a *Auction) State() State {
	s := State{
		ItemID:     a.itemID,
		Item:       a.item,
		Seller:     a.seller,
		EndTime:    a.endTime,
		HighestBid: new(big.Int).Set(a.highestBid),
		Active:     a.active,
	}
	if a.highestBidder != nil {
		bidder := *a.highestBidder
		s.HighestBidder = &bidder
	}
	return s
}

func (a *Auction) ItemID() ItemID {
	return a.itemID
}

// Item returns the listed text
func (a *Auction) Item() string {
	return a.item
}

func (a *Auction) Seller() common.Address {
	return a.seller
}

func (a *Auction) EndTime() BlockNumber {
	return a.endTime
}

func (a *Auction) Active() bool {
	return a.active
}

// HighestBid returns a copy of the current best offer (zero when there is none)
func (a *Auction) HighestBid() *big.Int {
	return new(big.Int).Set(a.highestBid)
}

// Winner returns the current highest bidder (nil when there is none) and the highest bid
func (a *Auction) Winner() (*common.Address, *big.Int) {
	if a.highestBidder == nil {
		return nil, new(big.Int).Set(a.highestBid)
	}
	bidder := *a.highestBidder
	return &bidder, new(big.Int).Set(a.highestBid)
}

// Info is the status projection returned to callers
type Info struct {
	CurrentBlock BlockNumber
	EndBlock     BlockNumber
	Active       bool
}

// Info reports the auction status as seen at block now
func (a *Auction) Info(now BlockNumber) Info {
	return Info{
		CurrentBlock: now,
		EndBlock:     a.endTime,
		Active:       a.active,
	}
}

// EventType represents the type of domain event
type EventType string

const (
	EventTypeAuctionCreated EventType = "auction.created"
	EventTypeBidPlaced      EventType = "bid.placed"
	EventTypeBidRefunded    EventType = "bid.refunded"
	EventTypeAuctionEnded   EventType = "auction.ended"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeAuctionCreated, EventTypeBidPlaced, EventTypeBidRefunded, EventTypeAuctionEnded:
		return true
	default:
		return false
	}
}

// Event is a notification of an accepted mutation
type Event interface {
	EventType() EventType
}

// AuctionCreated is emitted once, when the auction is listed
type AuctionCreated struct {
	Seller common.Address
	ItemID ItemID
	Item   string
}

func (AuctionCreated) EventType() EventType { return EventTypeAuctionCreated }

// BidPlaced is emitted for every accepted bid
type BidPlaced struct {
	Bidder common.Address
	Amount *big.Int
}

func (BidPlaced) EventType() EventType { return EventTypeBidPlaced }

// BidRefunded is emitted after a displaced bid has been returned
type BidRefunded struct {
	PreviousBidder common.Address
	Amount         *big.Int
}

func (BidRefunded) EventType() EventType { return EventTypeBidRefunded }

// AuctionEnded is emitted on finalization. Winner is nil when nobody bid.
type AuctionEnded struct {
	Winner *common.Address
	Amount *big.Int
}

func (AuctionEnded) EventType() EventType { return EventTypeAuctionEnded }
