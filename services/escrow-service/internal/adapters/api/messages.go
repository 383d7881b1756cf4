package api

import (
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// Amounts are decimal strings on the wire; block numbers are JSON numbers.

type Listing struct {
	AuctionID     string `json:"auction_id"`
	ItemID        string `json:"item_id"`
	Item          string `json:"item"`
	Seller        string `json:"seller"`
	EndBlock      uint64 `json:"end_block"`
	HighestBid    string `json:"highest_bid"`
	HighestBidder string `json:"highest_bidder,omitempty"`
	Custody       string `json:"custody"`
	Active        bool   `json:"active"`
}

type CreateAuctionRequest struct {
	Item     string `json:"item"`
	Duration uint64 `json:"duration"`
}

type CreateAuctionResponse struct {
	Listing *Listing `json:"listing"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    string `json:"amount"`
}

type PlaceBidResponse struct {
	Listing *Listing `json:"listing"`
}

type EndAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type EndAuctionResponse struct {
	Listing *Listing `json:"listing"`
}

type GetAuctionInfoRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetAuctionInfoResponse struct {
	CurrentBlock uint64 `json:"current_block"`
	EndBlock     uint64 `json:"end_block"`
	Active       bool   `json:"active"`
}

type GetItemRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetItemResponse struct {
	ItemID string `json:"item_id"`
	Item   string `json:"item"`
}

type GetWinnerRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetWinnerResponse struct {
	Winner string `json:"winner,omitempty"`
	Amount string `json:"amount"`
}

// FundAccountRequest credits the caller's own account
type FundAccountRequest struct {
	Amount string `json:"amount"`
}

type FundAccountResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type GetBalanceRequest struct {
	Account string `json:"account"`
}

type GetBalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type ListActivityRequest struct {
	AuctionID string `json:"auction_id"`
	Limit     int64  `json:"limit"`
}

type ListActivityResponse struct {
	Entries []*escrow.Activity `json:"entries"`
}
