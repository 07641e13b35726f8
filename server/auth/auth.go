// Package auth provides pluggable verification of client credentials.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrFailed is returned when the presented secret does not match the stored
// record.
var ErrFailed = errors.New("auth: failed")

// Verifier hashes secrets for storage and checks presented secrets against
// stored hashes. Implementations must never require the plaintext to be
// recoverable from the stored form.
type Verifier interface {
	// Hash converts a plaintext secret into its storage form.
	Hash(secret string) ([]byte, error)
	// Compare checks a presented plaintext secret against the storage form.
	// Returns ErrFailed on mismatch.
	Compare(stored []byte, secret string) error
}

// Bcrypt is a Verifier backed by bcrypt.
type Bcrypt struct {
	// Cost is the bcrypt work factor. Zero means bcrypt.DefaultCost.
	Cost int
}

func (b Bcrypt) Hash(secret string) ([]byte, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(secret), cost)
}

func (b Bcrypt) Compare(stored []byte, secret string) error {
	if err := bcrypt.CompareHashAndPassword(stored, []byte(secret)); err != nil {
		return ErrFailed
	}
	return nil
}
