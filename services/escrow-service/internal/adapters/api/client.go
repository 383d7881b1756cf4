package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// EscrowServiceClient calls the escrow service over the Connect protocol with JSON bodies
type EscrowServiceClient struct {
	createAuction  *connect.Client[CreateAuctionRequest, CreateAuctionResponse]
	placeBid       *connect.Client[PlaceBidRequest, PlaceBidResponse]
	endAuction     *connect.Client[EndAuctionRequest, EndAuctionResponse]
	getAuctionInfo *connect.Client[GetAuctionInfoRequest, GetAuctionInfoResponse]
	getItem        *connect.Client[GetItemRequest, GetItemResponse]
	getWinner      *connect.Client[GetWinnerRequest, GetWinnerResponse]
	fundAccount    *connect.Client[FundAccountRequest, FundAccountResponse]
	getBalance     *connect.Client[GetBalanceRequest, GetBalanceResponse]
	listActivity   *connect.Client[ListActivityRequest, ListActivityResponse]
}

// NewEscrowServiceClient creates a client for the service at baseURL (e.g. http://localhost:8080)
func NewEscrowServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *EscrowServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &EscrowServiceClient{
		createAuction:  connect.NewClient[CreateAuctionRequest, CreateAuctionResponse](httpClient, baseURL+CreateAuctionProcedure, opts...),
		placeBid:       connect.NewClient[PlaceBidRequest, PlaceBidResponse](httpClient, baseURL+PlaceBidProcedure, opts...),
		endAuction:     connect.NewClient[EndAuctionRequest, EndAuctionResponse](httpClient, baseURL+EndAuctionProcedure, opts...),
		getAuctionInfo: connect.NewClient[GetAuctionInfoRequest, GetAuctionInfoResponse](httpClient, baseURL+GetAuctionInfoProcedure, opts...),
		getItem:        connect.NewClient[GetItemRequest, GetItemResponse](httpClient, baseURL+GetItemProcedure, opts...),
		getWinner:      connect.NewClient[GetWinnerRequest, GetWinnerResponse](httpClient, baseURL+GetWinnerProcedure, opts...),
		fundAccount:    connect.NewClient[FundAccountRequest, FundAccountResponse](httpClient, baseURL+FundAccountProcedure, opts...),
		getBalance:     connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+GetBalanceProcedure, opts...),
		listActivity:   connect.NewClient[ListActivityRequest, ListActivityResponse](httpClient, baseURL+ListActivityProcedure, opts...),
	}
}

// withToken attaches a bearer token when one is given
func withToken[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

func (c *EscrowServiceClient) CreateAuction(ctx context.Context, token string, msg *CreateAuctionRequest) (*CreateAuctionResponse, error) {
	res, err := c.createAuction.CallUnary(ctx, withToken(msg, token))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) PlaceBid(ctx context.Context, token string, msg *PlaceBidRequest) (*PlaceBidResponse, error) {
	res, err := c.placeBid.CallUnary(ctx, withToken(msg, token))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) EndAuction(ctx context.Context, token string, msg *EndAuctionRequest) (*EndAuctionResponse, error) {
	res, err := c.endAuction.CallUnary(ctx, withToken(msg, token))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) GetAuctionInfo(ctx context.Context, msg *GetAuctionInfoRequest) (*GetAuctionInfoResponse, error) {
	res, err := c.getAuctionInfo.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) GetItem(ctx context.Context, msg *GetItemRequest) (*GetItemResponse, error) {
	res, err := c.getItem.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) GetWinner(ctx context.Context, msg *GetWinnerRequest) (*GetWinnerResponse, error) {
	res, err := c.getWinner.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) FundAccount(ctx context.Context, token string, msg *FundAccountRequest) (*FundAccountResponse, error) {
	res, err := c.fundAccount.CallUnary(ctx, withToken(msg, token))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) GetBalance(ctx context.Context, msg *GetBalanceRequest) (*GetBalanceResponse, error) {
	res, err := c.getBalance.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *EscrowServiceClient) ListActivity(ctx context.Context, msg *ListActivityRequest) (*ListActivityResponse, error) {
	res, err := c.listActivity.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
