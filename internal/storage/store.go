package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStallUnavailable is returned when a reservation loses the race
	// for a stall, or the stall was never available
	ErrStallUnavailable = errors.New("stall not available")
)

// Store defines the interface for storage operations used by the USSD flows
type Store interface {
	// User operations
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUsersWithoutPaymentSince(ctx context.Context, since time.Time) ([]*models.User, error)

	// Stall operations
	GetAvailableStalls(ctx context.Context) ([]*models.Stall, error)
	CreateStall(ctx context.Context, stall *models.Stall) (*models.Stall, error)
	// ReserveStall flips one stall from available to unavailable as a
	// single compare-and-set keyed by stall number.
	ReserveStall(ctx context.Context, stallNumber string) error

	// Payment operations
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetPaymentsSince(ctx context.Context, userID uint, since time.Time) ([]*models.Payment, error)

	// Issue operations
	CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error
}
