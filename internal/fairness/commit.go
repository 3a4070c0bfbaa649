package fairness

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidCommitment = errors.New("commitment must be 64 lowercase hex characters")
	ErrNoCommitment      = errors.New("no commitment on file")
	ErrRevealMismatch    = errors.New("reveal does not match commitment")
)

// CommitmentHexLen is the length of a sha256 digest encoded as hex.
const CommitmentHexLen = 64

// Commitment returns the hash a player publishes before the hand:
// sha256 over seed || "|" || salt, lowercase hex.
func Commitment(seed, salt string) string {
	sum := sha256.Sum256([]byte(seed + "|" + salt))
	return hex.EncodeToString(sum[:])
}

// ValidateCommitment checks the structural shape of a published commitment.
// Content is unverifiable until reveal; only the encoding is checked here.
func ValidateCommitment(c string) error {
	if len(c) != CommitmentHexLen {
		return fmt.Errorf("%w: got %d characters", ErrInvalidCommitment, len(c))
	}
	for i := 0; i < len(c); i++ {
		ch := c[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return fmt.Errorf("%w: byte %d is not lowercase hex", ErrInvalidCommitment, i)
		}
	}
	return nil
}

// CheckReveal verifies that (seed, salt) hashes to the stored commitment.
// Binding: only the originally committed pair can pass.
func CheckReveal(commitment, seed, salt string) error {
	if commitment == "" {
		return ErrNoCommitment
	}
	if Commitment(seed, salt) != commitment {
		return ErrRevealMismatch
	}
	return nil
}
