//go:build integration

package escrow_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/poetchain/pkg/database"
	pkgevents "github.com/floroz/poetchain/pkg/events"
	"github.com/floroz/poetchain/pkg/testhelpers"
	"github.com/floroz/poetchain/services/escrow-service/internal/adapters/clock"
	infradb "github.com/floroz/poetchain/services/escrow-service/internal/adapters/database"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

const poem = "Because I could not stop for Death, He kindly stopped for me"

var (
	seller = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000a1a")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// testServices holds the service and the repositories behind it
type testServices struct {
	Service    *escrow.Service
	Clock      *clock.ManualClock
	LedgerRepo *infradb.PostgresLedgerRepository
	OutboxRepo *infradb.PostgresOutboxRepository
}

func setupEscrowService(pool *pgxpool.Pool) *testServices {
	txManager := database.NewPostgresTransactionManager(pool, 5*time.Second)
	auctionRepo := infradb.NewPostgresAuctionRepository(pool)
	ledgerRepo := infradb.NewPostgresLedgerRepository(pool)
	outboxRepo := infradb.NewPostgresOutboxRepository(pool)
	clk := clock.NewManualClock(100)

	return &testServices{
		Service:    escrow.NewService(txManager, auctionRepo, ledgerRepo, outboxRepo, clk),
		Clock:      clk,
		LedgerRepo: ledgerRepo,
		OutboxRepo: outboxRepo,
	}
}

func TestEscrowService_FullAuction(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	svc := setupEscrowService(testDB.Pool)
	ctx := context.Background()

	// Arrange
	for _, who := range []common.Address{alice, bob} {
		_, err := svc.Service.FundAccount(ctx, who, big.NewInt(1_000))
		require.NoError(t, err)
	}
	listing, err := svc.Service.CreateAuction(ctx, escrow.CreateAuctionCommand{Seller: seller, Item: poem, Duration: 50})
	require.NoError(t, err)

	// Act
	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: alice, Amount: big.NewInt(300)})
	require.NoError(t, err)
	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: bob, Amount: big.NewInt(300)})
	assert.ErrorIs(t, err, auction.ErrBidTooLow)
	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: bob, Amount: big.NewInt(450)})
	require.NoError(t, err)

	custody, err := svc.LedgerRepo.Custody(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "450", custody.String())

	svc.Clock.Advance(51)
	ended, err := svc.Service.EndAuction(ctx, escrow.EndAuctionCommand{AuctionID: listing.ID, Caller: seller})
	require.NoError(t, err)

	// Assert
	assert.False(t, ended.Auction.Active())
	balances := map[common.Address]string{seller: "450", alice: "1000", bob: "550"}
	for who, want := range balances {
		got, err := svc.Service.GetBalance(ctx, who)
		require.NoError(t, err)
		assert.Equal(t, want, got.String(), who.Hex())
	}

	custody, err = svc.LedgerRepo.Custody(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, custody.Sign())

	entries, err := svc.Service.GetLedgerEntries(ctx, listing.ID)
	require.NoError(t, err)
	kinds := make([]escrow.EntryKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []escrow.EntryKind{
		escrow.EntryKindDeposit,
		escrow.EntryKindDeposit,
		escrow.EntryKindRefund,
		escrow.EntryKindPayout,
	}, kinds)

	pending, err := svc.OutboxRepo.CountByStatus(ctx, pkgevents.OutboxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 5, pending, "created, placed, refunded, placed, ended")

	winner, err := svc.Service.GetWinner(ctx, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, winner.Bidder)
	assert.Equal(t, bob, *winner.Bidder)
}

func TestEscrowService_LargeAmountsSurviveStorage(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	svc := setupEscrowService(testDB.Pool)
	ctx := context.Background()

	wei, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10) // 2^128
	_, err := svc.Service.FundAccount(ctx, alice, wei)
	require.NoError(t, err)

	listing, err := svc.Service.CreateAuction(ctx, escrow.CreateAuctionCommand{Seller: seller, Item: poem, Duration: auction.MaxBlockNumber})
	require.NoError(t, err)
	assert.Equal(t, auction.MaxBlockNumber, listing.Auction.EndTime(), "end time saturates")

	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: alice, Amount: wei})
	require.NoError(t, err)

	stored, err := svc.Service.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, wei.String(), stored.Auction.HighestBid().String())
	assert.Equal(t, auction.MaxBlockNumber, stored.Auction.EndTime())
}

func TestEscrowService_RejectedBidRollsBack(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	svc := setupEscrowService(testDB.Pool)
	ctx := context.Background()

	_, err := svc.Service.FundAccount(ctx, alice, big.NewInt(100))
	require.NoError(t, err)
	listing, err := svc.Service.CreateAuction(ctx, escrow.CreateAuctionCommand{Seller: seller, Item: poem, Duration: 10})
	require.NoError(t, err)

	svc.Clock.Advance(11)
	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: alice, Amount: big.NewInt(60)})
	assert.ErrorIs(t, err, auction.ErrAuctionExpired)

	_, err = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: alice, Amount: big.NewInt(600)})
	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)

	balance, err := svc.Service.GetBalance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	entries, err := svc.Service.GetLedgerEntries(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestEscrowService_ConcurrentBids checks that row locking serializes bids:
// custody always ends up equal to the single surviving highest bid.
func TestEscrowService_ConcurrentBids(t *testing.T) {
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	svc := setupEscrowService(testDB.Pool)
	ctx := context.Background()

	listing, err := svc.Service.CreateAuction(ctx, escrow.CreateAuctionCommand{Seller: seller, Item: poem, Duration: 1_000})
	require.NoError(t, err)

	const bidders = 10
	addrs := make([]common.Address, bidders)
	for i := range addrs {
		addrs[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
		_, err := svc.Service.FundAccount(ctx, addrs[i], big.NewInt(1_000))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i, who := range addrs {
		wg.Add(1)
		go func(amount int64, who common.Address) {
			defer wg.Done()
			_, _ = svc.Service.PlaceBid(ctx, escrow.PlaceBidCommand{AuctionID: listing.ID, Bidder: who, Amount: big.NewInt(amount)})
		}(int64(100+i), who)
	}
	wg.Wait()

	stored, err := svc.Service.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	winner, amount := stored.Auction.Winner()
	require.NotNil(t, winner)
	assert.Equal(t, 0, stored.Custody.Cmp(amount))

	total := new(big.Int).Set(stored.Custody)
	for _, who := range addrs {
		b, err := svc.Service.GetBalance(ctx, who)
		require.NoError(t, err)
		total.Add(total, b)
	}
	assert.Equal(t, big.NewInt(bidders*1_000).String(), total.String(), "no funds created or lost")
}
