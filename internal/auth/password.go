package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/example/trailer-shop/internal/apperr"
)

const (
	minPasswordLength = 8
	// bcrypt only reads the first 72 bytes of its input.
	maxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = apperr.Validation("password must be at least %d characters", minPasswordLength)
	ErrPasswordTooLong  = apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
)

// BcryptCost is the work factor for new hashes. Tests lower it.
var BcryptCost = 12

// HashPassword checks the shop's password rules and returns a bcrypt hash
// suitable for the users table.
func HashPassword(password string) (string, error) {
	switch {
	case len([]rune(password)) < minPasswordLength:
		return "", ErrPasswordTooShort
	case len(password) > maxPasswordBytes:
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches a stored hash. A malformed
// hash never matches.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
