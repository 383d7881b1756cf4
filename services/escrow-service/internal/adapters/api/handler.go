package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/floroz/poetchain/pkg/auth"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// ServiceName is the fully-qualified name of the escrow RPC service
const ServiceName = "poetchain.escrow.v1.EscrowService"

const (
	CreateAuctionProcedure  = "/" + ServiceName + "/CreateAuction"
	PlaceBidProcedure       = "/" + ServiceName + "/PlaceBid"
	EndAuctionProcedure     = "/" + ServiceName + "/EndAuction"
	GetAuctionInfoProcedure = "/" + ServiceName + "/GetAuctionInfo"
	GetItemProcedure        = "/" + ServiceName + "/GetItem"
	GetWinnerProcedure      = "/" + ServiceName + "/GetWinner"
	FundAccountProcedure    = "/" + ServiceName + "/FundAccount"
	GetBalanceProcedure     = "/" + ServiceName + "/GetBalance"
	ListActivityProcedure   = "/" + ServiceName + "/ListActivity"
)

// PublicProcedures can be called without a bearer token
var PublicProcedures = []string{
	GetAuctionInfoProcedure,
	GetItemProcedure,
	GetWinnerProcedure,
	GetBalanceProcedure,
	ListActivityProcedure,
}

const defaultActivityLimit = 20

// EscrowService is the application service behind the handler
type EscrowService interface {
	CreateAuction(ctx context.Context, cmd escrow.CreateAuctionCommand) (*escrow.Listing, error)
	PlaceBid(ctx context.Context, cmd escrow.PlaceBidCommand) (*escrow.Listing, error)
	EndAuction(ctx context.Context, cmd escrow.EndAuctionCommand) (*escrow.Listing, error)
	GetAuctionInfo(ctx context.Context, id uuid.UUID) (auction.Info, error)
	GetItem(ctx context.Context, id uuid.UUID) (string, error)
	GetWinner(ctx context.Context, id uuid.UUID) (*escrow.Winner, error)
	FundAccount(ctx context.Context, account common.Address, amount *big.Int) (*big.Int, error)
	GetBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// ActivityReader reads the activity feed of an auction
type ActivityReader interface {
	List(ctx context.Context, auctionID uuid.UUID, limit int64) ([]*escrow.Activity, error)
}

type EscrowServiceHandler struct {
	service  EscrowService
	activity ActivityReader
}

// NewEscrowServiceHandler creates the handler; activity may be nil when no read model is configured
func NewEscrowServiceHandler(service EscrowService, activity ActivityReader) *EscrowServiceHandler {
	return &EscrowServiceHandler{
		service:  service,
		activity: activity,
	}
}

// NewHandler mounts every procedure of h behind the auth interceptor.
// It returns the path prefix to mount the handler on.
func NewHandler(h *EscrowServiceHandler, signer *auth.Signer) (string, http.Handler) {
	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(auth.NewAuthInterceptor(signer, PublicProcedures...)),
	}

	mux := http.NewServeMux()
	mux.Handle(CreateAuctionProcedure, connect.NewUnaryHandler(CreateAuctionProcedure, h.CreateAuction, opts...))
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(EndAuctionProcedure, connect.NewUnaryHandler(EndAuctionProcedure, h.EndAuction, opts...))
	mux.Handle(GetAuctionInfoProcedure, connect.NewUnaryHandler(GetAuctionInfoProcedure, h.GetAuctionInfo, opts...))
	mux.Handle(GetItemProcedure, connect.NewUnaryHandler(GetItemProcedure, h.GetItem, opts...))
	mux.Handle(GetWinnerProcedure, connect.NewUnaryHandler(GetWinnerProcedure, h.GetWinner, opts...))
	mux.Handle(FundAccountProcedure, connect.NewUnaryHandler(FundAccountProcedure, h.FundAccount, opts...))
	mux.Handle(GetBalanceProcedure, connect.NewUnaryHandler(GetBalanceProcedure, h.GetBalance, opts...))
	mux.Handle(ListActivityProcedure, connect.NewUnaryHandler(ListActivityProcedure, h.ListActivity, opts...))

	return "/" + ServiceName + "/", mux
}

// CreateAuction lists an item with the authenticated caller as seller
func (h *EscrowServiceHandler) CreateAuction(
	ctx context.Context,
	req *connect.Request[CreateAuctionRequest],
) (*connect.Response[CreateAuctionResponse], error) {
	cmd := escrow.CreateAuctionCommand{
		Seller:   auth.MustGetCaller(ctx),
		Item:     req.Msg.Item,
		Duration: auction.BlockNumber(req.Msg.Duration),
	}

	listing, err := h.service.CreateAuction(ctx, cmd)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CreateAuctionResponse{Listing: mapListing(listing)}), nil
}

// PlaceBid bids the attached amount from the caller's balance
func (h *EscrowServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Msg.Amount)
	if err != nil {
		return nil, err
	}

	listing, err := h.service.PlaceBid(ctx, escrow.PlaceBidCommand{
		AuctionID: auctionID,
		Bidder:    auth.MustGetCaller(ctx),
		Amount:    amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&PlaceBidResponse{Listing: mapListing(listing)}), nil
}

// EndAuction finalizes an auction; only its seller may call it
func (h *EscrowServiceHandler) EndAuction(
	ctx context.Context,
	req *connect.Request[EndAuctionRequest],
) (*connect.Response[EndAuctionResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	listing, err := h.service.EndAuction(ctx, escrow.EndAuctionCommand{
		AuctionID: auctionID,
		Caller:    auth.MustGetCaller(ctx),
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&EndAuctionResponse{Listing: mapListing(listing)}), nil
}

func (h *EscrowServiceHandler) GetAuctionInfo(
	ctx context.Context,
	req *connect.Request[GetAuctionInfoRequest],
) (*connect.Response[GetAuctionInfoResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	info, err := h.service.GetAuctionInfo(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetAuctionInfoResponse{
		CurrentBlock: uint64(info.CurrentBlock),
		EndBlock:     uint64(info.EndBlock),
		Active:       info.Active,
	}), nil
}

func (h *EscrowServiceHandler) GetItem(
	ctx context.Context,
	req *connect.Request[GetItemRequest],
) (*connect.Response[GetItemResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	item, err := h.service.GetItem(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetItemResponse{
		ItemID: auction.DigestItem(item).Hex(),
		Item:   item,
	}), nil
}

func (h *EscrowServiceHandler) GetWinner(
	ctx context.Context,
	req *connect.Request[GetWinnerRequest],
) (*connect.Response[GetWinnerResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	winner, err := h.service.GetWinner(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	res := &GetWinnerResponse{Amount: winner.Amount.String()}
	if winner.Bidder != nil {
		res.Winner = winner.Bidder.Hex()
	}
	return connect.NewResponse(res), nil
}

// FundAccount credits the caller's own account
func (h *EscrowServiceHandler) FundAccount(
	ctx context.Context,
	req *connect.Request[FundAccountRequest],
) (*connect.Response[FundAccountResponse], error) {
	amount, err := parseAmount(req.Msg.Amount)
	if err != nil {
		return nil, err
	}

	caller := auth.MustGetCaller(ctx)
	balance, err := h.service.FundAccount(ctx, caller, amount)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&FundAccountResponse{
		Account: caller.Hex(),
		Balance: balance.String(),
	}), nil
}

func (h *EscrowServiceHandler) GetBalance(
	ctx context.Context,
	req *connect.Request[GetBalanceRequest],
) (*connect.Response[GetBalanceResponse], error) {
	if !common.IsHexAddress(req.Msg.Account) {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid account"))
	}
	account := common.HexToAddress(req.Msg.Account)

	balance, err := h.service.GetBalance(ctx, account)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetBalanceResponse{
		Account: account.Hex(),
		Balance: balance.String(),
	}), nil
}

// ListActivity returns the most recent events of an auction, newest first
func (h *EscrowServiceHandler) ListActivity(
	ctx context.Context,
	req *connect.Request[ListActivityRequest],
) (*connect.Response[ListActivityResponse], error) {
	if h.activity == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("activity feed is not configured"))
	}

	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	entries, err := h.activity.List(ctx, auctionID, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}

	return connect.NewResponse(&ListActivityResponse{Entries: entries}), nil
}

func parseAuctionID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}
	return id, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("amount must be a decimal integer"))
	}
	return amount, nil
}

// mapListing converts a domain Listing to its wire form
func mapListing(l *escrow.Listing) *Listing {
	winner, amount := l.Auction.Winner()
	out := &Listing{
		AuctionID:  l.ID.String(),
		ItemID:     l.Auction.ItemID().Hex(),
		Item:       l.Auction.Item(),
		Seller:     l.Auction.Seller().Hex(),
		EndBlock:   uint64(l.Auction.EndTime()),
		HighestBid: amount.String(),
		Custody:    l.Custody.String(),
		Active:     l.Auction.Active(),
	}
	if winner != nil {
		out.HighestBidder = winner.Hex()
	}
	return out
}
