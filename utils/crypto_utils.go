package utils

import (
	"github.com/crytic/medusa-geth/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 digest over the concatenation of
// the provided byte slices. This is the content hash used for runtime code
// hashes and external function selectors.
func Keccak256(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// Keccak256Hash computes the legacy Keccak-256 digest over the concatenation
// of the provided byte slices and returns it as a fixed 256-bit hash value.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// Selector returns the first four bytes of the Keccak-256 hash of a canonical
// function signature, the external dispatch key.
func Selector(signature string) [4]byte {
	var selector [4]byte
	copy(selector[:], Keccak256([]byte(signature))[:4])
	return selector
}
