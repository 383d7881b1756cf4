package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errNoAttachedValue = errors.New("no value attached to this call")

// txLedger is the auction.Ledger for a single call inside one database transaction.
// It tracks the listing's custody so the caller can report it without re-reading.
type txLedger struct {
	tx        pgx.Tx
	repo      LedgerRepository
	auctionID uuid.UUID
	caller    common.Address
	value     *big.Int
	kind      EntryKind
	custody   *big.Int
}

func newTxLedger(tx pgx.Tx, repo LedgerRepository, auctionID uuid.UUID, caller common.Address, custody *big.Int, kind EntryKind) *txLedger {
	held := new(big.Int)
	if custody != nil {
		held.Set(custody)
	}
	return &txLedger{
		tx:        tx,
		repo:      repo,
		auctionID: auctionID,
		caller:    caller,
		kind:      kind,
		custody:   held,
	}
}

func (l *txLedger) Caller(_ context.Context) (common.Address, error) {
	return l.caller, nil
}

func (l *txLedger) AttachedValue(_ context.Context) (*big.Int, error) {
	if l.value == nil {
		return nil, errNoAttachedValue
	}
	return new(big.Int).Set(l.value), nil
}

// deposit moves the caller's attached value from their balance into custody
func (l *txLedger) deposit(ctx context.Context, amount *big.Int) error {
	l.value = new(big.Int).Set(amount)
	if amount.Sign() == 0 {
		return nil
	}

	if _, err := l.repo.Debit(ctx, l.tx, l.caller, amount); err != nil {
		return err
	}
	if err := l.repo.AddCustody(ctx, l.tx, l.auctionID, amount); err != nil {
		return fmt.Errorf("failed to add custody: %w", err)
	}
	if err := l.record(ctx, EntryKindDeposit, l.caller, amount); err != nil {
		return err
	}

	l.custody.Add(l.custody, amount)
	return nil
}

// Transfer releases amount from custody to the recipient's balance
func (l *txLedger) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if l.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}

	if err := l.repo.ReleaseCustody(ctx, l.tx, l.auctionID, amount); err != nil {
		return err
	}
	if _, err := l.repo.Credit(ctx, l.tx, to, amount); err != nil {
		return fmt.Errorf("failed to credit %s: %w", to.Hex(), err)
	}
	if err := l.record(ctx, l.kind, to, amount); err != nil {
		return err
	}

	l.custody.Sub(l.custody, amount)
	return nil
}

func (l *txLedger) record(ctx context.Context, kind EntryKind, account common.Address, amount *big.Int) error {
	entry := &LedgerEntry{
		ID:        uuid.New(),
		AuctionID: l.auctionID,
		Kind:      kind,
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: time.Now(),
	}
	if err := l.repo.RecordEntry(ctx, l.tx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}
