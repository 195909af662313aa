package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is a daily dues (ushuru) payment made over USSD
type Payment struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"index;not null"`
	Amount        float64   `json:"amount" gorm:"not null"`
	Method        string    `json:"payment_method" gorm:"column:payment_method"`
	TransactionID string    `json:"transaction_id" gorm:"uniqueIndex;not null"`
	Status        string    `json:"status"`
	StallLabel    string    `json:"stall_label"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// Payment constants
const (
	PaymentMethodUSSD = "USSD"

	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// BeforeCreate assigns a transaction ID when the caller did not
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.TransactionID == "" {
		p.TransactionID = uuid.NewString()
	}
	return nil
}
