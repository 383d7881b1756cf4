package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/poetchain/pkg/events"
)

// AuctionRepository defines the interface for listing persistence
type AuctionRepository interface {
	// CreateAuction inserts a new listing within a transaction
	CreateAuction(ctx context.Context, tx pgx.Tx, listing *Listing) error

	// GetAuctionByID retrieves a listing by its ID
	GetAuctionByID(ctx context.Context, id uuid.UUID) (*Listing, error)

	// GetAuctionByIDForUpdate retrieves a listing and locks its row.
	// Must be called within a transaction.
	GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Listing, error)

	// UpdateAuctionState writes the auction fields of a listing back; custody is left untouched
	UpdateAuctionState(ctx context.Context, tx pgx.Tx, listing *Listing) error
}

// LedgerRepository defines the interface for account balances and custody
type LedgerRepository interface {
	// Credit adds amount to an account, creating it if needed, and returns the new balance
	Credit(ctx context.Context, tx pgx.Tx, account common.Address, amount *big.Int) (*big.Int, error)

	// Debit removes amount from an account and returns the new balance.
	// Returns ErrInsufficientFunds when the balance is short.
	Debit(ctx context.Context, tx pgx.Tx, account common.Address, amount *big.Int) (*big.Int, error)

	// Balance returns the balance of an account; unknown accounts hold zero
	Balance(ctx context.Context, account common.Address) (*big.Int, error)

	// AddCustody moves amount into the custody of a listing
	AddCustody(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount *big.Int) error

	// ReleaseCustody takes amount out of the custody of a listing.
	// Returns ErrInsufficientCustody when custody is short.
	ReleaseCustody(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount *big.Int) error

	// Custody returns what is currently held for a listing
	Custody(ctx context.Context, auctionID uuid.UUID) (*big.Int, error)

	// RecordEntry appends to the ledger journal
	RecordEntry(ctx context.Context, tx pgx.Tx, entry *LedgerEntry) error

	// EntriesByAuction returns the journal of a listing in the order it was written
	EntriesByAuction(ctx context.Context, auctionID uuid.UUID) ([]*LedgerEntry, error)
}

// OutboxRepository defines the write side of the outbox
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
