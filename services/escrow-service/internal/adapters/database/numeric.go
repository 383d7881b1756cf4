package database

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// NUMERIC columns travel as decimal text so no precision is lost on the way

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func formatBlock(b auction.BlockNumber) string {
	return strconv.FormatUint(uint64(b), 10)
}

func parseBlock(s string) (auction.BlockNumber, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q: %w", s, err)
	}
	return auction.BlockNumber(v), nil
}
