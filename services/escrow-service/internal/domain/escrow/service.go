package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/poetchain/pkg/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

var (
	ErrAuctionNotFound     = fmt.Errorf("auction not found")
	ErrInsufficientFunds   = fmt.Errorf("insufficient funds")
	ErrInsufficientCustody = fmt.Errorf("insufficient funds held in custody")
	ErrInvalidAmount       = fmt.Errorf("amount must be positive")
)

// validateAmount rejects missing and non-positive amounts
func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Service hosts many independent auctions on top of Postgres.
// Each mutating call runs the auction state machine inside one transaction together with
// the custody movements and the outbox events it causes.
type Service struct {
	txManager   database.TransactionManager
	auctionRepo AuctionRepository
	ledgerRepo  LedgerRepository
	outboxRepo  OutboxRepository
	clock       auction.Clock
}

// NewService creates a new escrow service
func NewService(
	txManager database.TransactionManager,
	auctionRepo AuctionRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	clock auction.Clock,
) *Service {
	return &Service{
		txManager:   txManager,
		auctionRepo: auctionRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		clock:       clock,
	}
}

// CreateAuction lists an item with the command's seller as the caller
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Listing, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	id := uuid.New()
	ledger := newTxLedger(tx, s.ledgerRepo, id, cmd.Seller, nil, EntryKindPayout)
	notifier := newOutboxNotifier(id)

	a, err := auction.NewService(s.clock, ledger, notifier).Create(ctx, cmd.Item, cmd.Duration)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	listing := &Listing{
		ID:        id,
		Auction:   a,
		Custody:   new(big.Int),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.auctionRepo.CreateAuction(ctx, tx, listing); err != nil {
		return nil, fmt.Errorf("failed to save auction: %w", err)
	}

	if err := notifier.flush(ctx, tx, s.outboxRepo, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return listing, nil
}

// PlaceBid moves the attached amount from the bidder's balance into custody and bids it.
// Everything happens in one transaction; a rejected bid leaves balances untouched.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Listing, error) {
	if cmd.Amount == nil || cmd.Amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the listing so concurrent bids are applied one at a time
	listing, err := s.auctionRepo.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	ledger := newTxLedger(tx, s.ledgerRepo, listing.ID, cmd.Bidder, listing.Custody, EntryKindRefund)
	notifier := newOutboxNotifier(listing.ID)

	if err := ledger.deposit(ctx, cmd.Amount); err != nil {
		return nil, err
	}

	if err := auction.NewService(s.clock, ledger, notifier).Bid(ctx, listing.Auction); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, tx, listing, ledger, notifier); err != nil {
		return nil, err
	}
	return listing, nil
}

// EndAuction finalizes a listing on behalf of cmd.Caller and pays the seller
func (s *Service) EndAuction(ctx context.Context, cmd EndAuctionCommand) (*Listing, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	listing, err := s.auctionRepo.GetAuctionByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	ledger := newTxLedger(tx, s.ledgerRepo, listing.ID, cmd.Caller, listing.Custody, EntryKindPayout)
	notifier := newOutboxNotifier(listing.ID)

	if err := auction.NewService(s.clock, ledger, notifier).EndAuction(ctx, listing.Auction); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, tx, listing, ledger, notifier); err != nil {
		return nil, err
	}
	return listing, nil
}

// commit persists the mutated auction and its events, then commits
func (s *Service) commit(ctx context.Context, tx pgx.Tx, listing *Listing, ledger *txLedger, notifier *outboxNotifier) error {
	listing.UpdatedAt = time.Now()
	listing.Custody = new(big.Int).Set(ledger.custody)

	if err := s.auctionRepo.UpdateAuctionState(ctx, tx, listing); err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	if err := notifier.flush(ctx, tx, s.outboxRepo, s.clock.Now()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetListing returns a listing with its custody
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	return s.auctionRepo.GetAuctionByID(ctx, id)
}

// GetAuctionInfo reports the status of a listing at the current block
func (s *Service) GetAuctionInfo(ctx context.Context, id uuid.UUID) (auction.Info, error) {
	listing, err := s.auctionRepo.GetAuctionByID(ctx, id)
	if err != nil {
		return auction.Info{}, err
	}
	return auction.NewService(s.clock, nil, nil).Info(listing.Auction), nil
}

// GetItem returns the listed text
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (string, error) {
	listing, err := s.auctionRepo.GetAuctionByID(ctx, id)
	if err != nil {
		return "", err
	}
	return listing.Auction.Item(), nil
}

// GetWinner returns the current highest bidder and bid.
// Before the end this is the leading bid, after it the winning one.
func (s *Service) GetWinner(ctx context.Context, id uuid.UUID) (*Winner, error) {
	listing, err := s.auctionRepo.GetAuctionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	bidder, amount := listing.Auction.Winner()
	return &Winner{Bidder: bidder, Amount: amount}, nil
}

// GetLedgerEntries returns the custody journal of a listing
func (s *Service) GetLedgerEntries(ctx context.Context, id uuid.UUID) ([]*LedgerEntry, error) {
	if _, err := s.auctionRepo.GetAuctionByID(ctx, id); err != nil {
		return nil, err
	}
	return s.ledgerRepo.EntriesByAuction(ctx, id)
}

// FundAccount credits an account and returns the new balance
func (s *Service) FundAccount(ctx context.Context, account common.Address, amount *big.Int) (*big.Int, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	balance, err := s.ledgerRepo.Credit(ctx, tx, account, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// GetBalance returns the spendable balance of an account
func (s *Service) GetBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return s.ledgerRepo.Balance(ctx, account)
}
