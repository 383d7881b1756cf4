package escrow

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// Listing is a hosted auction together with the funds held for it
type Listing struct {
	ID        uuid.UUID
	Auction   *auction.Auction
	Custody   *big.Int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryKind labels a movement in the ledger journal
type EntryKind string

const (
	EntryKindDeposit EntryKind = "deposit"
	EntryKindRefund  EntryKind = "refund"
	EntryKindPayout  EntryKind = "payout"
)

// LedgerEntry is one journaled movement of funds into or out of a listing's custody
type LedgerEntry struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	Kind      EntryKind
	Account   common.Address
	Amount    *big.Int
	CreatedAt time.Time
}

type CreateAuctionCommand struct {
	Seller   common.Address
	Item     string
	Duration auction.BlockNumber
}

type PlaceBidCommand struct {
	AuctionID uuid.UUID
	Bidder    common.Address
	Amount    *big.Int
}

type EndAuctionCommand struct {
	AuctionID uuid.UUID
	Caller    common.Address
}

// Winner is the current best offer of a listing; Bidder is nil when nobody bid
type Winner struct {
	Bidder *common.Address
	Amount *big.Int
}

// Activity is the flattened, read-side view of one published event
type Activity struct {
	EventID    string    `json:"event_id"`
	AuctionID  string    `json:"auction_id"`
	EventType  string    `json:"event_type"`
	Block      uint64    `json:"block"`
	OccurredAt time.Time `json:"occurred_at"`
	Account    string    `json:"account,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Item       string    `json:"item,omitempty"`
}
