package auction

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Clock supplies the current block number.
// Successive calls must never return a smaller value.
type Clock interface {
	Now() BlockNumber
}

// Ledger resolves who is calling and moves custodied funds
type Ledger interface {
	// Caller resolves the identity invoking the current operation
	Caller(ctx context.Context) (common.Address, error)

	// AttachedValue returns the amount the caller attached to the current operation
	AttachedValue(ctx context.Context) (*big.Int, error)

	// Transfer moves amount out of the auction's custody to the given account.
	// A non-nil error means no funds moved.
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Notifier records events for off-system observers. It is never read back.
type Notifier interface {
	Emit(ctx context.Context, event Event)
}
