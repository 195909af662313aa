package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"gorm.io/gorm"
)

// DatabaseStore implements Store on top of PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// User operations
func (d *DatabaseStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("phone = ?", models.NormalizePhone(phone)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return &user, nil
}

func (d *DatabaseStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (d *DatabaseStore) GetUsersWithoutPaymentSince(ctx context.Context, since time.Time) ([]*models.User, error) {
	paid := d.db.Model(&models.Payment{}).
		Select("user_id").
		Where("status = ? AND created_at >= ?", models.PaymentStatusSuccess, since)

	var users []*models.User
	err := d.db.WithContext(ctx).
		Where("id NOT IN (?)", paid).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get users without payment: %w", err)
	}
	return users, nil
}

// Stall operations
func (d *DatabaseStore) GetAvailableStalls(ctx context.Context) ([]*models.Stall, error) {
	var stalls []*models.Stall
	err := d.db.WithContext(ctx).
		Where("available = ?", true).
		Order("stall_number ASC").
		Find(&stalls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get available stalls: %w", err)
	}
	return stalls, nil
}

func (d *DatabaseStore) CreateStall(ctx context.Context, stall *models.Stall) (*models.Stall, error) {
	if err := d.db.WithContext(ctx).Create(stall).Error; err != nil {
		return nil, fmt.Errorf("failed to create stall: %w", err)
	}
	return stall, nil
}

// ReserveStall issues a single conditional UPDATE. Two sessions racing on
// the same stall both send it; Postgres row locking lets exactly one match
// the available = true predicate.
func (d *DatabaseStore) ReserveStall(ctx context.Context, stallNumber string) error {
	result := d.db.WithContext(ctx).
		Model(&models.Stall{}).
		Where("stall_number = ? AND available = ?", stallNumber, true).
		Update("available", false)
	if result.Error != nil {
		return fmt.Errorf("failed to reserve stall %s: %w", stallNumber, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStallUnavailable
	}
	return nil
}

// Payment operations
func (d *DatabaseStore) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := d.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

func (d *DatabaseStore) GetPaymentsSince(ctx context.Context, userID uint, since time.Time) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get payment history: %w", err)
	}
	return payments, nil
}

// Issue operations
func (d *DatabaseStore) CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if issue.Status == "" {
		issue.Status = models.IssueStatusSubmitted
	}
	if err := d.db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return issue, nil
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
