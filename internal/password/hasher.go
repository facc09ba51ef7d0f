// Package password turns user passwords into their stored form and checks
// candidates against it.
package password

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"userauth/internal/domain"
)

const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// MaxBytes is the longest password bcrypt accepts.
const MaxBytes = 72

// Hasher converts passwords to the representation kept in the user store.
type Hasher interface {
	Hash(password string) (string, error)
	Matches(stored, candidate string) bool
}

// New returns the hasher for scheme. cost is only used by bcrypt; zero
// selects bcrypt.DefaultCost.
func New(scheme string, cost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case SchemePlain:
		return Plain{}, nil
	case SchemeBcrypt, "":
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
		}
		return Bcrypt{Cost: cost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

// Plain stores passwords as given.
type Plain struct{}

func (Plain) Hash(password string) (string, error) { return password, nil }

func (Plain) Matches(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// Bcrypt stores salted bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password exceeds %d bytes", domain.ErrInvalidInput, MaxBytes)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (Bcrypt) Matches(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}
