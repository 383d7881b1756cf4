package api

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// toConnectError maps domain errors to RPC status codes
func toConnectError(err error) error {
	switch {
	case errors.Is(err, escrow.ErrAuctionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, auction.ErrEmptyItem),
		errors.Is(err, escrow.ErrInvalidAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auction.ErrUnauthorized):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, auction.ErrTransferFailed):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrAuctionExpired),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrAuctionAlreadyEnded),
		errors.Is(err, auction.ErrAuctionStillRunning),
		errors.Is(err, escrow.ErrInsufficientFunds):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
