package auction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Validation errors
var (
	ErrAuctionNotActive    = fmt.Errorf("auction is not active")
	ErrAuctionExpired      = fmt.Errorf("auction has expired")
	ErrBidTooLow           = fmt.Errorf("bid amount must be higher than current highest bid")
	ErrAuctionAlreadyEnded = fmt.Errorf("auction has already ended")
	ErrUnauthorized        = fmt.Errorf("unauthorized: only the seller can end the auction")
	ErrAuctionStillRunning = fmt.Errorf("auction is still running")
	ErrTransferFailed      = fmt.Errorf("transfer failed")
	ErrEmptyItem           = fmt.Errorf("item must not be empty")
	ErrInvalidState        = fmt.Errorf("invalid auction state")
)

// validateBidAmount checks if the bid amount is strictly higher than the current highest bid.
// A missing amount counts as zero, so it is always too low.
func validateBidAmount(bidAmount, currentHighest *big.Int) error {
	if bidAmount == nil || bidAmount.Cmp(currentHighest) <= 0 {
		return ErrBidTooLow
	}
	return nil
}

// validateBiddingOpen checks that bidding is still allowed at block now.
// The end block itself is still open.
func validateBiddingOpen(now, endTime BlockNumber) error {
	if now > endTime {
		return ErrAuctionExpired
	}
	return nil
}

// validateBiddingClosed checks that the auction can be finalized at block now
func validateBiddingClosed(now, endTime BlockNumber) error {
	if now <= endTime {
		return ErrAuctionStillRunning
	}
	return nil
}

// endTimeAfter adds duration to start, saturating at MaxBlockNumber
func endTimeAfter(start, duration BlockNumber) BlockNumber {
	if duration > MaxBlockNumber-start {
		return MaxBlockNumber
	}
	return start + duration
}

// Service runs the auction state machine against its collaborators.
// It holds no auction state itself; each call operates on the Auction passed in.
type Service struct {
	clock    Clock
	ledger   Ledger
	notifier Notifier
}

// NewService creates a new auction service
func NewService(clock Clock, ledger Ledger, notifier Notifier) *Service {
	return &Service{
		clock:    clock,
		ledger:   ledger,
		notifier: notifier,
	}
}

// Create lists item for duration blocks, with the caller as seller
func (s *Service) Create(ctx context.Context, item string, duration BlockNumber) (*Auction, error) {
	if item == "" {
		return nil, ErrEmptyItem
	}

	seller, err := s.ledger.Caller(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller: %w", err)
	}

	a := &Auction{
		itemID:     DigestItem(item),
		item:       item,
		seller:     seller,
		endTime:    endTimeAfter(s.clock.Now(), duration),
		highestBid: new(big.Int),
		active:     true,
	}

	s.notifier.Emit(ctx, AuctionCreated{
		Seller: a.seller,
		ItemID: a.itemID,
		Item:   a.item,
	})

	return a, nil
}

// Bid places the caller's attached value as the new highest bid
func (s *Service) Bid(ctx context.Context, a *Auction) error {
	if !a.active {
		return ErrAuctionNotActive
	}

	if err := validateBiddingOpen(s.clock.Now(), a.endTime); err != nil {
		return err
	}

	bidder, err := s.ledger.Caller(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve caller: %w", err)
	}

	value, err := s.ledger.AttachedValue(ctx)
	if err != nil {
		return fmt.Errorf("failed to read attached value: %w", err)
	}

	if err := validateBidAmount(value, a.highestBid); err != nil {
		return err
	}

	return s.displace(ctx, a, bidder, value)
}

// displace replaces the highest bid with a new one.
// The previous bidder is refunded first; the new bid is only recorded once the refund succeeded.
func (s *Service) displace(ctx context.Context, a *Auction, bidder common.Address, amount *big.Int) error {
	if prev := a.highestBidder; prev != nil && a.highestBid.Sign() > 0 {
		previousBidder := *prev
		refund := new(big.Int).Set(a.highestBid)

		if err := s.ledger.Transfer(ctx, previousBidder, refund); err != nil {
			return fmt.Errorf("%w: refund to %s: %w", ErrTransferFailed, previousBidder.Hex(), err)
		}

		s.notifier.Emit(ctx, BidRefunded{
			PreviousBidder: previousBidder,
			Amount:         new(big.Int).Set(refund),
		})
	}

	a.highestBid = new(big.Int).Set(amount)
	a.highestBidder = &bidder

	s.notifier.Emit(ctx, BidPlaced{
		Bidder: bidder,
		Amount: new(big.Int).Set(amount),
	})

	return nil
}

// EndAuction closes the auction and pays the highest bid to the seller
func (s *Service) EndAuction(ctx context.Context, a *Auction) error {
	if !a.active {
		return ErrAuctionAlreadyEnded
	}

	caller, err := s.ledger.Caller(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve caller: %w", err)
	}
	if caller != a.seller {
		return ErrUnauthorized
	}

	if err := validateBiddingClosed(s.clock.Now(), a.endTime); err != nil {
		return err
	}

	amount := new(big.Int).Set(a.highestBid)
	var winner *common.Address

	// Payout happens before the state flip; a failed payout leaves the auction active.
	if a.highestBidder != nil {
		w := *a.highestBidder
		if err := s.ledger.Transfer(ctx, a.seller, amount); err != nil {
			return fmt.Errorf("%w: payout to %s: %w", ErrTransferFailed, a.seller.Hex(), err)
		}
		winner = &w
	}

	a.active = false

	s.notifier.Emit(ctx, AuctionEnded{
		Winner: winner,
		Amount: new(big.Int).Set(amount),
	})

	return nil
}

// Info reports the auction status at the current block
func (s *Service) Info(a *Auction) Info {
	return a.Info(s.clock.Now())
}
