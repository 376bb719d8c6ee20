package service

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	minIdempotencyKeyLen = 16
	maxIdempotencyKeyLen = 64
)

func validateIdempotencyKey(key string) error {
	if len(key) < minIdempotencyKeyLen || len(key) > maxIdempotencyKeyLen {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

// deriveCreditKey computes the idempotency key for the credit leg of
// a transfer: a stable function of the caller's key, so the paired
// leg gets a unique identity without caller input. The sha256 hex
// digest is 64 characters, the column's full width.
func deriveCreditKey(key string) string {
	sum := sha256.Sum256([]byte(key + "_credit"))
	return hex.EncodeToString(sum[:])
}
