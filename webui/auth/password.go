// Package auth guards the web API with a single shared password.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for new hashes.
const DefaultCost = 12

// MinCost is the lowest cost accepted by HashPasswordWithCost.
const MinCost = bcrypt.MinCost

var (
	ErrEmptyPassword    = errors.New("auth: password cannot be empty")
	ErrPasswordMismatch = errors.New("auth: password does not match")
	ErrInvalidHash      = errors.New("auth: invalid password hash")
)

// HashPassword returns a bcrypt hash of password at DefaultCost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultCost)
}

// HashPasswordWithCost returns a bcrypt hash of password.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost < MinCost || cost > bcrypt.MaxCost {
		return "", bcrypt.InvalidCostError(cost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares password with hash in constant time. Every
// failure other than a malformed hash is ErrPasswordMismatch.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if !IsValidHash(hash) {
		return ErrInvalidHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// IsValidHash reports whether hash is a well-formed bcrypt hash.
func IsValidHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}
