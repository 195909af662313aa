package ussd

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxPINAttempts is the number of wrong PINs that locks a session out
const MaxPINAttempts = 3

// HistoryWindow is how far back the payment history menu looks
const HistoryWindow = 3 * 24 * time.Hour

// StallPolicy decides what selecting a stall does
type StallPolicy string

const (
	// PolicyConfirm records the stall and asks the trader to pay dues for it
	PolicyConfirm StallPolicy = "confirm"
	// PolicyReserve marks the stall unavailable right away and ends the session
	PolicyReserve StallPolicy = "reserve"
)

// ParseStallPolicy maps a config value to a policy, defaulting to PolicyConfirm
func ParseStallPolicy(v string) StallPolicy {
	if StallPolicy(strings.ToLower(strings.TrimSpace(v))) == PolicyReserve {
		return PolicyReserve
	}
	return PolicyConfirm
}

// Store is the slice of business storage the menus read and write
type Store interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetAvailableStalls(ctx context.Context) ([]*models.Stall, error)
	ReserveStall(ctx context.Context, stallNumber string) error
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetPaymentsSince(ctx context.Context, userID uint, since time.Time) ([]*models.Payment, error)
	CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error)
}

// PINVerifier checks a trader's PIN. The machine only sees the result.
type PINVerifier interface {
	VerifyPIN(ctx context.Context, phone, pin string) (bool, error)
}

// Machine is the USSD menu state machine. It mutates the session it is
// given; the caller persists it, or deletes it when the reply ends.
type Machine struct {
	store    Store
	verifier PINVerifier
	log      logrus.FieldLogger

	policy  StallPolicy
	amount  float64
	method  string
	now     func() time.Time
	newTxID func() string
}

// Option configures a Machine
type Option func(*Machine)

// WithStallPolicy selects what happens after a stall is picked
func WithStallPolicy(p StallPolicy) Option {
	return func(m *Machine) {
		m.policy = p
	}
}

// WithDuesAmount sets the fixed daily dues charged per payment
func WithDuesAmount(amount float64) Option {
	return func(m *Machine) {
		m.amount = amount
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a menu state machine over the given collaborators
func NewMachine(store Store, verifier PINVerifier, log logrus.FieldLogger, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		verifier: verifier,
		log:      log,
		policy:   PolicyConfirm,
		amount:   1000,
		method:   models.PaymentMethodUSSD,
		now:      time.Now,
		newTxID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Policy returns the configured stall selection policy
func (m *Machine) Policy() StallPolicy {
	return m.policy
}

// Step advances the conversation by one turn
func (m *Machine) Step(ctx context.Context, s *session.Session, turn Turn) Result {
	k := turn.Keystroke()

	switch s.State {
	case session.StateMainMenu:
		if turn.IsFirst() {
			return Result{Reply: Continue(msgRootMenu)}
		}
		return m.mainMenu(ctx, s, turn.Phone, k)
	case session.StateSelectStall:
		return m.selectStall(ctx, s, turn.Phone, k)
	case session.StateConfirmPayment:
		return m.confirmPayment(s, k)
	case session.StateEnterPIN:
		return m.enterPIN(ctx, s, turn.Phone, k)
	case session.StateReportIssue:
		return m.reportIssue(ctx, s, turn.Phone, k)
	}

	m.log.WithFields(logrus.Fields{"session": s.Key, "state": s.State}).Warn("Unknown session state")
	return Result{Reply: End(msgInvalidInput)}
}

func (m *Machine) mainMenu(ctx context.Context, s *session.Session, phone, k string) Result {
	user, err := m.store.GetUserByPhone(ctx, phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.fail(s, "lookup user", err)
		return Result{Reply: End(msgTryLater)}
	}
	if user == nil && k != "1" {
		return Result{Reply: End(msgUserNotFound)}
	}
	if user != nil {
		s.UserID = user.ID
	}

	switch k {
	case "1":
		s.State = session.StateSelectStall
		s.Stalls = PredefinedStalls()
		return Result{Reply: Continue(predefinedStallMenu(s.Stalls))}

	case "2":
		stalls, err := m.store.GetAvailableStalls(ctx)
		if err != nil {
			m.fail(s, "list available stalls", err)
			return Result{Reply: End(msgStallsError)}
		}
		if len(stalls) == 0 {
			return Result{Reply: End(msgNoStalls)}
		}
		numbers := make([]string, len(stalls))
		for i, st := range stalls {
			numbers[i] = st.StallNumber
		}
		s.State = session.StateSelectStall
		s.Stalls = numbers
		return Result{Reply: Continue(availableStallMenu(numbers))}

	case "3":
		payments, err := m.store.GetPaymentsSince(ctx, user.ID, m.now().Add(-HistoryWindow))
		if err != nil {
			m.fail(s, "fetch payment history", err)
			return Result{Reply: End(msgHistoryError)}
		}
		if len(payments) == 0 {
			return Result{Reply: End(msgNoHistory)}
		}
		return Result{Reply: End(msgHistorySent)}.notify(phone, paymentHistorySMS(payments))

	case "4":
		s.State = session.StateReportIssue
		return Result{Reply: Continue(msgReportPrompt)}
	}

	return Result{Reply: Continue(msgRootMenu)}
}

func (m *Machine) selectStall(ctx context.Context, s *session.Session, phone, k string) Result {
	choice, err := strconv.Atoi(strings.TrimSpace(k))
	index := choice - 1
	if err != nil || index < 0 || index >= len(s.Stalls) {
		return Result{Reply: Continue(msgInvalidStall)}
	}
	stall := s.Stalls[index]

	if m.policy == PolicyReserve {
		return m.reserveStall(ctx, s, phone, stall)
	}

	s.SelectedStall = stall
	s.State = session.StateConfirmPayment
	return Result{Reply: Continue(confirmPaymentMenu(stall, m.amount))}
}

func (m *Machine) reserveStall(ctx context.Context, s *session.Session, phone, stall string) Result {
	err := m.store.ReserveStall(ctx, stall)
	switch {
	case errors.Is(err, storage.ErrStallUnavailable):
		return Result{Reply: End(stallTaken(stall))}
	case err != nil:
		m.fail(s, "reserve stall", err)
		return Result{Reply: End(msgReserveError)}
	}

	m.log.WithFields(logrus.Fields{"session": s.Key, "stall": stall}).Info("Stall reserved")
	return Result{Reply: End(stallReserved(stall))}.notify(phone, stallReservedSMS(stall))
}

func (m *Machine) confirmPayment(s *session.Session, k string) Result {
	switch k {
	case "1":
		s.State = session.StateEnterPIN
		return Result{Reply: Continue(msgEnterPIN)}
	case "2":
		return Result{Reply: End(msgPaymentCancelled)}
	}
	return Result{Reply: Continue(msgConfirmOptions)}
}

func (m *Machine) enterPIN(ctx context.Context, s *session.Session, phone, k string) Result {
	ok, err := m.verifier.VerifyPIN(ctx, phone, k)
	if err != nil {
		m.fail(s, "verify PIN", err)
		return Result{Reply: End(msgPaymentError)}
	}

	if !ok {
		s.RetryCount++
		if s.RetryCount < MaxPINAttempts {
			return Result{Reply: Continue(pinRetryPrompt(MaxPINAttempts - s.RetryCount))}
		}
		m.log.WithFields(logrus.Fields{"session": s.Key, "phone": phone}).Warn("PIN attempts exhausted")
		return Result{Reply: End(msgPINLocked)}
	}

	payment := &models.Payment{
		UserID:        s.UserID,
		Amount:        m.amount,
		Method:        m.method,
		TransactionID: m.newTxID(),
		Status:        models.PaymentStatusSuccess,
		StallLabel:    s.SelectedStall,
		CreatedAt:     m.now(),
	}
	if _, err := m.store.CreatePayment(ctx, payment); err != nil {
		m.fail(s, "record payment", err)
		return Result{Reply: End(msgPaymentError)}
	}

	m.log.WithFields(logrus.Fields{
		"session":        s.Key,
		"transaction_id": payment.TransactionID,
		"stall":          payment.StallLabel,
	}).Info("Dues payment recorded")

	return Result{Reply: End(msgPaymentDone)}.
		notify(phone, paymentConfirmationSMS(payment.Amount, payment.StallLabel, payment.TransactionID))
}

func (m *Machine) reportIssue(ctx context.Context, s *session.Session, phone, k string) Result {
	if strings.TrimSpace(k) == "" {
		return Result{Reply: Continue(msgReportBlank)}
	}

	issue := &models.Issue{
		UserID:      s.UserID,
		Description: k,
		Status:      models.IssueStatusSubmitted,
	}
	if _, err := m.store.CreateIssue(ctx, issue); err != nil {
		m.fail(s, "record issue", err)
		return Result{Reply: End(msgReportError)}
	}

	return Result{Reply: End(msgReportReceived)}.notify(phone, issueConfirmationSMS(k))
}

func (m *Machine) fail(s *session.Session, op string, err error) {
	m.log.WithFields(logrus.Fields{
		"session": s.Key,
		"state":   s.State,
	}).WithError(err).Errorf("Failed to %s", op)
}
