// Package password hashes and checks principal passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "learnhub/pkg/domain-errors"
)

// MinLength is the shortest password accepted at registration.
const MinLength = 6

var ErrMismatch = errors.New("password mismatch")

type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher. A cost outside bcrypt's range falls back
// to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) ([]byte, error) {
	if len(password) < MinLength {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", MinLength))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return nil, fmt.Errorf("could not hash password: %w", err)
	}
	return hashed, nil
}

// Verify returns ErrMismatch when password does not match hash.
func (h *Hasher) Verify(password string, hash []byte) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}
