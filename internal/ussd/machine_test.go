package ussd

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Ananth-NQI/soko-ussd/internal/models"
	"github.com/Ananth-NQI/soko-ussd/internal/session"
	"github.com/Ananth-NQI/soko-ussd/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	traderPhone = "+255712345678"
	traderPIN   = "4321"
)

// pinTable verifies PINs from a fixed phone -> PIN map
type pinTable map[string]string

func (p pinTable) VerifyPIN(ctx context.Context, phone, pin string) (bool, error) {
	want, ok := p[phone]
	return ok && want == pin, nil
}

// failingStore wraps a MemoryStore and fails selected operations
type failingStore struct {
	*storage.MemoryStore
	failUser    bool
	failStalls  bool
	failPayment bool
	failHistory bool
	failIssue   bool
}

var errDown = errors.New("database is down")

func (f *failingStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	if f.failUser {
		return nil, errDown
	}
	return f.MemoryStore.GetUserByPhone(ctx, phone)
}

func (f *failingStore) GetAvailableStalls(ctx context.Context) ([]*models.Stall, error) {
	if f.failStalls {
		return nil, errDown
	}
	return f.MemoryStore.GetAvailableStalls(ctx)
}

func (f *failingStore) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if f.failPayment {
		return nil, errDown
	}
	return f.MemoryStore.CreatePayment(ctx, p)
}

func (f *failingStore) GetPaymentsSince(ctx context.Context, userID uint, since time.Time) ([]*models.Payment, error) {
	if f.failHistory {
		return nil, errDown
	}
	return f.MemoryStore.GetPaymentsSince(ctx, userID, since)
}

func (f *failingStore) CreateIssue(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if f.failIssue {
		return nil, errDown
	}
	return f.MemoryStore.CreateIssue(ctx, issue)
}

type harness struct {
	t       *testing.T
	store   *failingStore
	machine *Machine
	sess    *session.Session
	text    []string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	mem := storage.NewMemoryStore()
	_, err := mem.CreateUser(context.Background(), &models.User{Name: "Asha", Phone: traderPhone})
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := &failingStore{MemoryStore: mem}
	m := NewMachine(store, pinTable{traderPhone: traderPIN}, log, opts...)
	m.newTxID = func() string { return "tx-0001" }

	return &harness{t: t, store: store, machine: m, sess: session.New("ATUid_test")}
}

// press sends the next keystroke with the accumulated input the gateway would send
func (h *harness) press(keys ...string) Result {
	h.t.Helper()
	var res Result
	for _, k := range keys {
		h.text = append(h.text, k)
		res = h.machine.Step(context.Background(), h.sess, Turn{
			SessionKey: h.sess.Key,
			Phone:      traderPhone,
			Text:       strings.Join(h.text, Separator),
		})
	}
	return res
}

func (h *harness) open() Result {
	h.t.Helper()
	return h.machine.Step(context.Background(), h.sess, Turn{SessionKey: h.sess.Key, Phone: traderPhone})
}

func TestLatestKeystroke(t *testing.T) {
	assert.Equal(t, "", LatestKeystroke(""))
	assert.Equal(t, "1", LatestKeystroke("1"))
	assert.Equal(t, "3", LatestKeystroke("1*2*3"))
	assert.Equal(t, "", LatestKeystroke("1*"))
	assert.Equal(t, "Uchafu sokoni", LatestKeystroke("4*Uchafu sokoni"))
}

func TestReplyString(t *testing.T) {
	assert.Equal(t, "CON hello", Continue("hello").String())
	assert.Equal(t, "END bye", End("bye").String())
}

func TestPredefinedStalls(t *testing.T) {
	assert.Equal(t, []string{"001-A", "002-B", "003-C", "004-D"}, PredefinedStalls())
}

func TestFirstTurnShowsRootMenu(t *testing.T) {
	h := newHarness(t)
	res := h.open()

	assert.False(t, res.Reply.End)
	assert.Contains(t, res.Reply.Message, "1. Fanya Malipo")
	assert.Contains(t, res.Reply.Message, "4. Ripoti Tatizo")
	assert.Equal(t, session.StateMainMenu, h.sess.State)
}

func TestPayDuesScenario(t *testing.T) {
	h := newHarness(t)
	h.open()

	res := h.press("1")
	assert.False(t, res.Reply.End)
	assert.Equal(t, session.StateSelectStall, h.sess.State)
	assert.Contains(t, res.Reply.Message, "1. 001-A")
	assert.Contains(t, res.Reply.Message, "4. 004-D")
	assert.NotContains(t, res.Reply.Message, "5.")

	res = h.press("1")
	assert.False(t, res.Reply.End)
	assert.Equal(t, session.StateConfirmPayment, h.sess.State)
	assert.Equal(t, "001-A", h.sess.SelectedStall)
	assert.Contains(t, res.Reply.Message, "1000 Tsh")

	res = h.press("1")
	assert.False(t, res.Reply.End)
	assert.Equal(t, session.StateEnterPIN, h.sess.State)

	res = h.press(traderPIN)
	assert.True(t, res.Reply.End)
	assert.Equal(t, msgPaymentDone, res.Reply.Message)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, traderPhone, res.Notifications[0].To)
	assert.Contains(t, res.Notifications[0].Body, "tx-0001")
	assert.Contains(t, res.Notifications[0].Body, "001-A")

	user, err := h.store.GetUserByPhone(context.Background(), traderPhone)
	require.NoError(t, err)
	payments, err := h.store.GetPaymentsSince(context.Background(), user.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "tx-0001", payments[0].TransactionID)
	assert.Equal(t, models.PaymentStatusSuccess, payments[0].Status)
	assert.Equal(t, models.PaymentMethodUSSD, payments[0].Method)
	assert.Equal(t, 1000.0, payments[0].Amount)
}

func TestCancelPayment(t *testing.T) {
	h := newHarness(t)
	h.open()
	res := h.press("1", "2", "2")

	assert.True(t, res.Reply.End)
	assert.Equal(t, msgPaymentCancelled, res.Reply.Message)
	assert.Empty(t, res.Notifications)
}

func TestConfirmPaymentRepromptsOnUnknownOption(t *testing.T) {
	h := newHarness(t)
	h.open()
	res := h.press("1", "3", "9")

	assert.False(t, res.Reply.End)
	assert.Equal(t, msgConfirmOptions, res.Reply.Message)
	assert.Equal(t, session.StateConfirmPayment, h.sess.State)
}

func TestInvalidStallSelectionStaysInSelectStall(t *testing.T) {
	for _, k := range []string{"0", "5", "-1", "abc", "", "99999999999999999999"} {
		t.Run("input_"+k, func(t *testing.T) {
			h := newHarness(t)
			h.open()
			h.press("1")

			res := h.press(k)
			assert.False(t, res.Reply.End)
			assert.Equal(t, msgInvalidStall, res.Reply.Message)
			assert.Equal(t, session.StateSelectStall, h.sess.State)
			assert.True(t, strings.HasPrefix(res.Reply.String(), "CON "))
		})
	}
}

func TestThreeWrongPINsLockOut(t *testing.T) {
	h := newHarness(t)
	h.open()
	h.press("1", "1", "1")

	res := h.press("0000")
	assert.False(t, res.Reply.End)
	assert.Contains(t, res.Reply.Message, "2 attempts left")
	assert.Equal(t, 1, h.sess.RetryCount)

	res = h.press("1111")
	assert.False(t, res.Reply.End)
	assert.Contains(t, res.Reply.Message, "1 attempts left")
	assert.Equal(t, 2, h.sess.RetryCount)

	res = h.press("2222")
	assert.True(t, res.Reply.End)
	assert.Equal(t, msgPINLocked, res.Reply.Message)
	assert.True(t, strings.HasPrefix(res.Reply.String(), "END "))
	assert.Equal(t, 3, h.sess.RetryCount)
	assert.Empty(t, res.Notifications)
}

func TestPINSucceedsAfterOneMistake(t *testing.T) {
	h := newHarness(t)
	h.open()
	h.press("1", "2", "1", "0000")

	res := h.press(traderPIN)
	assert.True(t, res.Reply.End)
	assert.Equal(t, msgPaymentDone, res.Reply.Message)
	assert.Equal(t, 1, h.sess.RetryCount)
}

func TestUnknownUser(t *testing.T) {
	h := newHarness(t)
	h.open()

	for _, k := range []string{"2", "3", "4", "9"} {
		h.sess = session.New("ATUid_" + k)
		h.text = nil
		res := h.machine.Step(context.Background(), h.sess, Turn{Phone: "+255799999999", Text: k})
		assert.True(t, res.Reply.End, k)
		assert.Equal(t, msgUserNotFound, res.Reply.Message, k)
	}

	// Paying dues is allowed before registration
	h.sess = session.New("ATUid_1")
	res := h.machine.Step(context.Background(), h.sess, Turn{Phone: "+255799999999", Text: "1"})
	assert.False(t, res.Reply.End)
	assert.Equal(t, session.StateSelectStall, h.sess.State)
}

func TestUnknownMainMenuOptionRedrawsMenu(t *testing.T) {
	h := newHarness(t)
	h.open()
	res := h.press("7")

	assert.False(t, res.Reply.End)
	assert.Equal(t, msgRootMenu, res.Reply.Message)
	assert.Equal(t, session.StateMainMenu, h.sess.State)

	res = h.press("4")
	assert.Equal(t, session.StateReportIssue, h.sess.State)
	assert.Equal(t, msgReportPrompt, res.Reply.Message)
}

func TestAvailableStallsListed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, n := range []string{"B-02", "A-01"} {
		_, err := h.store.CreateStall(ctx, &models.Stall{StallNumber: n, Available: true})
		require.NoError(t, err)
	}
	h.open()

	res := h.press("2")
	assert.False(t, res.Reply.End)
	assert.Equal(t, session.StateSelectStall, h.sess.State)
	assert.Equal(t, []string{"A-01", "B-02"}, h.sess.Stalls)
	assert.Contains(t, res.Reply.Message, "1. Stall A-01\n2. Stall B-02")

	// Only two stalls were offered, so a third index is out of range
	res = h.press("3")
	assert.False(t, res.Reply.End)
	assert.Equal(t, msgInvalidStall, res.Reply.Message)

	res = h.press("2")
	assert.Equal(t, session.StateConfirmPayment, h.sess.State)
	assert.Equal(t, "B-02", h.sess.SelectedStall)
}

func TestNoAvailableStalls(t *testing.T) {
	h := newHarness(t)
	h.open()
	res := h.press("2")

	assert.True(t, res.Reply.End)
	assert.Equal(t, msgNoStalls, res.Reply.Message)
}

func TestReservePolicy(t *testing.T) {
	h := newHarness(t, WithStallPolicy(PolicyReserve))
	ctx := context.Background()
	_, err := h.store.CreateStall(ctx, &models.Stall{StallNumber: "A-01", Available: true})
	require.NoError(t, err)
	h.open()

	h.press("2")
	res := h.press("1")
	assert.True(t, res.Reply.End)
	assert.Equal(t, stallReserved("A-01"), res.Reply.Message)
	require.Len(t, res.Notifications, 1)
	assert.Contains(t, res.Notifications[0].Body, "A-01")

	stalls, err := h.store.GetAvailableStalls(ctx)
	require.NoError(t, err)
	assert.Empty(t, stalls)
}

func TestReservePolicyConcurrentSessions(t *testing.T) {
	h := newHarness(t, WithStallPolicy(PolicyReserve))
	ctx := context.Background()
	_, err := h.store.CreateStall(ctx, &models.Stall{StallNumber: "A-01", Available: true})
	require.NoError(t, err)

	// Both sessions saw the stall as available before either picked it
	sessions := make([]*session.Session, 2)
	for i := range sessions {
		sessions[i] = session.New("ATUid_race")
		res := h.machine.Step(ctx, sessions[i], Turn{Phone: traderPhone, Text: "2"})
		require.False(t, res.Reply.End)
	}

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.machine.Step(ctx, sessions[i], Turn{Phone: traderPhone, Text: "2*1"})
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, r := range results {
		require.True(t, r.Reply.End)
		switch r.Reply.Message {
		case stallReserved("A-01"):
			won++
		case stallTaken("A-01"):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
}

func TestPaymentHistory(t *testing.T) {
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	user, err := h.store.GetUserByPhone(ctx, traderPhone)
	require.NoError(t, err)

	for _, p := range []*models.Payment{
		{UserID: user.ID, Amount: 1000, Method: "USSD", TransactionID: "old", Status: "SUCCESS", CreatedAt: now.AddDate(0, 0, -5)},
		{UserID: user.ID, Amount: 1000, Method: "USSD", TransactionID: "tx-a", Status: "SUCCESS", CreatedAt: now.AddDate(0, 0, -2)},
		{UserID: user.ID, Amount: 1000, Method: "USSD", TransactionID: "tx-b", Status: "SUCCESS", CreatedAt: now.Add(-time.Hour)},
	} {
		_, err := h.store.CreatePayment(ctx, p)
		require.NoError(t, err)
	}
	h.open()

	res := h.press("3")
	assert.True(t, res.Reply.End)
	assert.Equal(t, msgHistorySent, res.Reply.Message)
	assert.NotContains(t, res.Reply.Message, "tx-")
	require.Len(t, res.Notifications, 1)

	body := res.Notifications[0].Body
	assert.Contains(t, body, "1. Amount: 1000 Tsh")
	assert.Contains(t, body, "Transaction ID: tx-b")
	assert.Contains(t, body, "2. Amount: 1000 Tsh")
	assert.Contains(t, body, "Transaction ID: tx-a")
	assert.NotContains(t, body, "old")
}

func TestEmptyPaymentHistoryEnds(t *testing.T) {
	h := newHarness(t)
	h.open()
	res := h.press("3")

	assert.True(t, res.Reply.End)
	assert.Equal(t, msgNoHistory, res.Reply.Message)
	assert.Empty(t, res.Notifications)
}

func TestReportIssue(t *testing.T) {
	h := newHarness(t)
	h.open()
	h.press("4")

	res := h.press("   ")
	assert.False(t, res.Reply.End)
	assert.Equal(t, msgReportBlank, res.Reply.Message)
	assert.Equal(t, session.StateReportIssue, h.sess.State)

	res = h.press("Uchafu haujazolewa")
	assert.True(t, res.Reply.End)
	assert.Equal(t, msgReportReceived, res.Reply.Message)
	require.Len(t, res.Notifications, 1)
	assert.Contains(t, res.Notifications[0].Body, "Uchafu haujazolewa")

	issues := h.store.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "Uchafu haujazolewa", issues[0].Description)
	assert.Equal(t, models.IssueStatusSubmitted, issues[0].Status)
	assert.Equal(t, h.sess.UserID, issues[0].UserID)
}

func TestUnknownStateEnds(t *testing.T) {
	h := newHarness(t)
	h.sess.State = "payment_history"
	res := h.press("1")

	assert.True(t, res.Reply.End)
	assert.Equal(t, msgInvalidInput, res.Reply.Message)
}

func TestCollaboratorFailuresEndConversation(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*failingStore)
		keys  []string
		want  string
	}{
		{"user lookup", func(f *failingStore) { f.failUser = true }, []string{"1"}, msgTryLater},
		{"stall list", func(f *failingStore) { f.failStalls = true }, []string{"2"}, msgStallsError},
		{"history", func(f *failingStore) { f.failHistory = true }, []string{"3"}, msgHistoryError},
		{"payment", func(f *failingStore) { f.failPayment = true }, []string{"1", "1", "1", traderPIN}, msgPaymentError},
		{"issue", func(f *failingStore) { f.failIssue = true }, []string{"4", "Kibanda kimebomolewa"}, msgReportError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(h.store)
			h.open()

			res := h.press(tc.keys...)
			assert.True(t, res.Reply.End)
			assert.Equal(t, tc.want, res.Reply.Message)
			assert.Empty(t, res.Notifications)
		})
	}
}

func TestParseStallPolicy(t *testing.T) {
	assert.Equal(t, PolicyReserve, ParseStallPolicy("reserve"))
	assert.Equal(t, PolicyReserve, ParseStallPolicy(" RESERVE "))
	assert.Equal(t, PolicyConfirm, ParseStallPolicy("confirm"))
	assert.Equal(t, PolicyConfirm, ParseStallPolicy(""))
}
