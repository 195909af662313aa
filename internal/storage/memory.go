package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/google/uuid"
)

// MemoryStore holds all data in memory for local testing
type MemoryStore struct {
	users    map[string]*models.User // keyed by phone
	stalls   map[string]*models.Stall
	payments []*models.Payment
	issues   []*models.Issue

	// Mutexes for thread safety
	userMu    sync.RWMutex
	stallMu   sync.Mutex
	paymentMu sync.RWMutex
	issueMu   sync.Mutex

	// Counters for ID generation
	userCounter    uint
	stallCounter   uint
	paymentCounter uint
	issueCounter   uint

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*models.User),
		stalls: make(map[string]*models.Stall),
		now:    time.Now,
	}
}

// User operations
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	user.Phone = models.NormalizePhone(user.Phone)
	m.userCounter++
	user.ID = m.userCounter
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt

	m.users[user.Phone] = user
	return user, nil
}

func (m *MemoryStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[models.NormalizePhone(phone)]
	if !exists {
		return nil, ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) GetUsersWithoutPaymentSince(ctx context.Context, since time.Time) ([]*models.User, error) {
	m.paymentMu.RLock()
	paid := make(map[uint]bool)
	for _, p := range m.payments {
		if p.Status == models.PaymentStatusSuccess && !p.CreatedAt.Before(since) {
			paid[p.UserID] = true
		}
	}
	m.paymentMu.RUnlock()

	m.userMu.RLock()
	defer m.userMu.RUnlock()

	var users []*models.User
	for _, u := range m.users {
		if !paid[u.ID] {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Stall operations
func (m *MemoryStore) CreateStall(ctx context.Context, stall *models.Stall) (*models.Stall, error) {
	m.stallMu.Lock()
	defer m.stallMu.Unlock()

	m.stallCounter++
	stall.ID = m.stallCounter
	stall.CreatedAt = m.now()
	stall.UpdatedAt = stall.CreatedAt

	m.stalls[stall.StallNumber] = stall
	return stall, nil
}

func (m *MemoryStore) GetAvailableStalls(ctx context.Context) ([]*models.Stall, error) {
	m.stallMu.Lock()
	defer m.stallMu.Unlock()

	var stalls []*models.Stall
	for _, s := range m.stalls {
		if s.Available {
			copied := *s
			stalls = append(stalls, &copied)
		}
	}
	sort.Slice(stalls, func(i, j int) bool { return stalls[i].StallNumber < stalls[j].StallNumber })
	return stalls, nil
}

func (m *MemoryStore) ReserveStall(ctx context.Context, stallNumber string) error {
	m.stallMu.Lock()
	defer m.stallMu.Unlock()

	stall, exists := m.stalls[stallNumber]
	if !exists || !stall.Available {
		return ErrStallUnavailable
	}
	stall.Available = false
	stall.UpdatedAt = m.now()
	return nil
}

// Payment operations
func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	m.paymentMu.Lock()
	defer m.paymentMu.Unlock()

	m.paymentCounter++
	payment.ID = m.paymentCounter
	if payment.TransactionID == "" {
		payment.TransactionID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = m.now()
	}

	m.payments = append(m.payments, payment)
	return payment, nil
}

func (m *MemoryStore) GetPaymentsSince(ctx context.Context, userID uint, since time.Time) ([]*models.Payment, error) {
	m.paymentMu.RLock()
	defer m.paymentMu.RUnlock()

	var payments []*models.Payment
	for _, p := range m.payments {
		if p.UserID == userID && !p.CreatedAt.Before(since) {
			payments = append(payments, p)
		}
	}
	// Newest first
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

// Issue operations
func (m *MemoryStore) CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	m.issueMu.Lock()
	defer m.issueMu.Unlock()

	m.issueCounter++
	issue.ID = m.issueCounter
	if issue.Status == "" {
		issue.Status = models.IssueStatusSubmitted
	}
	issue.CreatedAt = m.now()
	issue.UpdatedAt = issue.CreatedAt

	m.issues = append(m.issues, issue)
	return issue, nil
}

// Issues returns a snapshot of submitted issues
func (m *MemoryStore) Issues() []*models.Issue {
	m.issueMu.Lock()
	defer m.issueMu.Unlock()

	return append([]*models.Issue(nil), m.issues...)
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
