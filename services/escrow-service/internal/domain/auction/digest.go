package auction

import (
	"golang.org/x/crypto/sha3"
)

// DigestItem computes the content identifier of an item (legacy Keccak-256)
func DigestItem(item string) ItemID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(item))

	var id ItemID
	copy(id[:], h.Sum(nil))
	return id
}
