// Package auth implements password hashing, sessions, request
// authentication and login throttling.
package auth

import (
	"errors"
	"fmt"

	"github.com/tartampluch/rappel-anniv/internal/config"
	"github.com/tartampluch/rappel-anniv/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword creates a bcrypt hash of password for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.Errorf(domain.ErrValidation, config.TKeyErrPasswordShort)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Errorf(domain.ErrValidation, config.TKeyErrInvalidBody)
		}
		return "", fmt.Errorf("%s: %w", config.ErrPasswordHash, err)
	}
	return string(hashed), nil
}

// VerifyPassword checks a plaintext password against a bcrypt hash. A
// mismatch is reported as domain.ErrUnauthorized.
func VerifyPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.Errorf(domain.ErrUnauthorized, config.TKeyErrBadCredentials)
		}
		return fmt.Errorf("could not verify password: %w", err)
	}
	return nil
}
