package models

import "gorm.io/gorm"

// Issue is a complaint filed by a trader about their workplace
type Issue struct {
	gorm.Model
	UserID      uint   `json:"user_id" gorm:"index;not null"`
	Description string `json:"issue_description" gorm:"column:issue_description;not null"`
	Status      string `json:"status" gorm:"default:'submitted'"`
}

// Issue status constants
const (
	IssueStatusSubmitted  = "submitted"
	IssueStatusInProgress = "in_progress"
	IssueStatusResolved   = "resolved"
)
