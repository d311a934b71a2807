package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKeccak256KnownVectors ensures the hash function implements legacy
// Keccak-256 rather than standardized SHA3-256.
func TestKeccak256KnownVectors(t *testing.T) {
	// The empty-input digest distinguishes the two constructions.
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256()))

	// Concatenation of slices must equal hashing the joined input.
	joined := Keccak256([]byte("abc"))
	split := Keccak256([]byte("a"), []byte("bc"))
	assert.Equal(t, joined, split)
}

// TestKeccak256Hash ensures the fixed-size wrapper agrees with the raw
// digest.
func TestKeccak256Hash(t *testing.T) {
	digest := Keccak256([]byte("solstack"))
	hash := Keccak256Hash([]byte("solstack"))
	assert.Equal(t, digest, hash.Bytes())
}

// TestSelector checks the canonical 4-byte function selector derivation.
func TestSelector(t *testing.T) {
	// transfer(address,uint256) has the well-known selector a9059cbb.
	selector := Selector("transfer(address,uint256)")
	assert.Equal(t, "a9059cbb", hex.EncodeToString(selector[:]))
}

// TestSortedKeys ensures map iteration helpers produce ascending order.
func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
}
