package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// UserFinder looks traders up by phone number
type UserFinder interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
}

// PINService verifies each trader's own PIN against its bcrypt hash
type PINService struct {
	users UserFinder
}

func NewPINService(users UserFinder) *PINService {
	return &PINService{users: users}
}

// VerifyPIN reports whether pin matches the trader's stored hash.
// Unknown traders and traders without a PIN never verify.
func (p *PINService) VerifyPIN(ctx context.Context, phone, pin string) (bool, error) {
	user, err := p.users.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user for PIN check: %w", err)
	}
	if user.PinHash == "" {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(pin))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare PIN: %w", err)
	}
	return true, nil
}

// HashPIN validates a 4-digit PIN and returns its bcrypt hash
func HashPIN(pin string) (string, error) {
	if len(pin) != 4 {
		return "", fmt.Errorf("PIN must be 4 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("PIN must be 4 digits")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}
