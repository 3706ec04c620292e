package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tooldesk/tooldesk/internal/shared"
)

// DefaultBcryptCost is the work factor applied when none is configured.
const DefaultBcryptCost = 10

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// MsgInvalidPassword is returned for passwords bcrypt cannot hash.
const MsgInvalidPassword = "Invalid password."

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using cost, falling back to DefaultBcryptCost when out of range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return BcryptHasher{Cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if len(password) > MaxPasswordBytes {
		return "", shared.Validation(MsgInvalidPassword)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", shared.Validation(MsgInvalidPassword)
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash.
func (h BcryptHasher) Verify(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
