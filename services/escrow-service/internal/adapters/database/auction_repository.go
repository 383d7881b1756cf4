package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/poetchain/pkg/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// PostgresAuctionRepository implements escrow.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// CreateAuction inserts a listing within a transaction
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, tx pgx.Tx, listing *escrow.Listing) error {
	query := `
		INSERT INTO auctions (id, item_id, item, seller, end_block, highest_bid, highest_bidder, custody, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8::numeric, $9, $10, $11)
	`
	s := listing.Auction.State()
	_, err := tx.Exec(ctx, query,
		listing.ID,
		s.ItemID[:],
		s.Item,
		s.Seller.Hex(),
		formatBlock(s.EndTime),
		s.HighestBid.String(),
		bidderColumn(s.HighestBidder),
		listing.Custody.String(),
		s.Active,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetAuctionByID retrieves a listing by its ID (non-transactional read)
func (r *PostgresAuctionRepository) GetAuctionByID(ctx context.Context, id uuid.UUID) (*escrow.Listing, error) {
	return r.getAuctionByID(ctx, r.pool, id, false)
}

// GetAuctionByIDForUpdate retrieves a listing and locks it for update (transactional)
// This serializes bids and the end of the same auction
func (r *PostgresAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*escrow.Listing, error) {
	return r.getAuctionByID(ctx, tx, id, true)
}

// getAuctionByID is the internal implementation that works with any DBTX
func (r *PostgresAuctionRepository) getAuctionByID(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*escrow.Listing, error) {
	query := `
		SELECT id, item_id, item, seller, end_block::text, highest_bid::text, highest_bidder, custody::text, active, created_at, updated_at
		FROM auctions
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		listing       escrow.Listing
		itemID        []byte
		item          string
		seller        string
		endBlock      string
		highestBid    string
		highestBidder *string
		custody       string
		active        bool
	)
	err := db.QueryRow(ctx, query, id).Scan(
		&listing.ID,
		&itemID,
		&item,
		&seller,
		&endBlock,
		&highestBid,
		&highestBidder,
		&custody,
		&active,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	state := auction.State{
		Item:   item,
		Seller: common.HexToAddress(seller),
		Active: active,
	}
	if state.ItemID, err = auction.ItemIDFromBytes(itemID); err != nil {
		return nil, err
	}
	if state.EndTime, err = parseBlock(endBlock); err != nil {
		return nil, err
	}
	if state.HighestBid, err = parseAmount(highestBid); err != nil {
		return nil, err
	}
	if highestBidder != nil {
		bidder := common.HexToAddress(*highestBidder)
		state.HighestBidder = &bidder
	}
	if listing.Custody, err = parseAmount(custody); err != nil {
		return nil, err
	}

	listing.Auction, err = auction.Restore(state)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateAuctionState writes the auction fields back; custody is owned by the ledger repository
func (r *PostgresAuctionRepository) UpdateAuctionState(ctx context.Context, tx pgx.Tx, listing *escrow.Listing) error {
	query := `
		UPDATE auctions
		SET highest_bid = $1::numeric, highest_bidder = $2, active = $3, updated_at = $4
		WHERE id = $5
	`
	s := listing.Auction.State()
	result, err := tx.Exec(ctx, query,
		s.HighestBid.String(),
		bidderColumn(s.HighestBidder),
		s.Active,
		listing.UpdatedAt,
		listing.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return escrow.ErrAuctionNotFound
	}

	return nil
}

func bidderColumn(bidder *common.Address) *string {
	if bidder == nil {
		return nil
	}
	s := bidder.Hex()
	return &s
}
