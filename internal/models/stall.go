package models

import "gorm.io/gorm"

// Stall is a rentable trading spot in the market
type Stall struct {
	gorm.Model
	StallNumber string `json:"stall_number" gorm:"uniqueIndex;not null"`
	Available   bool   `json:"available" gorm:"default:true;index"`
}
