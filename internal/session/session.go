package session

import (
	"context"
	"time"
)

// State is a step of the USSD menu conversation
type State string

const (
	StateMainMenu       State = "main_menu"
	StateSelectStall    State = "select_stall"
	StateConfirmPayment State = "confirm_payment"
	StateEnterPIN       State = "enter_pin"
	StateReportIssue    State = "report_issue"
)

// Session holds per-conversation state between USSD turns.
// It lives from the first turn until the turn that ends the conversation.
type Session struct {
	Key           string    `json:"key"`
	Phone         string    `json:"phone"`
	State         State     `json:"state"`
	UserID        uint      `json:"user_id,omitempty"`
	SelectedStall string    `json:"selected_stall,omitempty"`
	RetryCount    int       `json:"retry_count,omitempty"`
	Stalls        []string  `json:"stalls,omitempty"` // options last rendered at select_stall
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}

// New returns a fresh session at the root menu
func New(key string) *Session {
	now := time.Now()
	return &Session{
		Key:        key,
		State:      StateMainMenu,
		CreatedAt:  now,
		LastActive: now,
	}
}

// Store holds session state keyed by the gateway's session identifier.
// Turns for one key arrive in order, so implementations need not lock
// across a get-modify-save round trip.
type Store interface {
	// GetOrCreate returns the stored session or a new one at main_menu.
	GetOrCreate(ctx context.Context, key string) (*Session, error)
	// Save persists the session under its key.
	Save(ctx context.Context, s *Session) error
	// Delete removes the session. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}
