package models

import (
	"strings"

	"gorm.io/gorm"
)

// User is a registered market trader, identified by phone number
type User struct {
	gorm.Model
	Name    string `json:"name" gorm:"not null"`
	Phone   string `json:"phone" gorm:"uniqueIndex;not null"`
	Email   string `json:"email,omitempty"`
	PinHash string `json:"-"` // bcrypt hash of the trader's USSD PIN
}

// BeforeCreate normalizes the phone number to international format
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Phone = NormalizePhone(u.Phone)
	return nil
}

// NormalizePhone ensures a Tanzanian number starts with +255.
// Gateways send either "+2557..." or "07..." depending on the operator.
func NormalizePhone(phone string) string {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	switch {
	case phone == "":
		return phone
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "255"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return "+255" + strings.TrimPrefix(phone, "0")
	}
	return phone
}
