package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/pkg/logger"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Email(ctx context.Context, memberID uuid.UUID) (string, error) {
	args := m.Called(ctx, memberID)
	return args.String(0), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, memberID uuid.UUID, eventType string, data map[string]interface{}) error {
	args := m.Called(ctx, memberID, eventType, data)
	return args.Error(0)
}

func TestNotify_SendsEmailAndAudits(t *testing.T) {
	memberID := uuid.New()
	sender := new(MockSender)
	dir := new(MockDirectory)
	audit := new(MockAuditRepository)

	dir.On("Email", mock.Anything, memberID).Return("jane@example.com", nil)
	sender.On("Send", "jane@example.com", "Payment Confirmed",
		"Your payment of 1,250.50 on loan LN-2024-0001 was confirmed. Remaining balance: 8,749.50.").Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.AuditLog) bool {
		return l.Action == "NOTIFICATION_SENT" && l.MemberID != nil && *l.MemberID == memberID
	})).Return(nil)

	svc := NewService(logger.NewNop(), audit, dir, sender)
	err := svc.Notify(context.Background(), memberID, EventPaymentConfirmed, map[string]interface{}{
		"amount":            decimal.RequireFromString("1250.5"),
		"loan_number":       "LN-2024-0001",
		"balance_remaining": decimal.RequireFromString("8749.50"),
	})

	require.NoError(t, err)
	sender.AssertExpectations(t)
	dir.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestNotify_NoAddressSkipsEmail(t *testing.T) {
	memberID := uuid.New()
	sender := new(MockSender)
	dir := new(MockDirectory)
	dir.On("Email", mock.Anything, memberID).Return("", nil)

	svc := NewService(logger.NewNop(), nil, dir, sender)
	require.NoError(t, svc.Notify(context.Background(), memberID, EventLoanPaidOff, map[string]interface{}{"loan_number": "LN-2024-0002"}))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_MailFailureIsReturnedButAuditStillWritten(t *testing.T) {
	memberID := uuid.New()
	sender := new(MockSender)
	dir := new(MockDirectory)
	audit := new(MockAuditRepository)
	dir.On("Email", mock.Anything, memberID).Return("a@b.c", nil)
	sender.On("Send", "a@b.c", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(logger.NewNop(), audit, dir, sender)
	err := svc.Notify(context.Background(), memberID, EventDividendPaid, map[string]interface{}{"year": 2024})
	assert.Error(t, err)
	audit.AssertExpectations(t)
}

func TestRender_UnknownEvent(t *testing.T) {
	subject, body := render("SOMETHING_ELSE", nil)
	assert.Equal(t, "Notification", subject)
	assert.Equal(t, "Event: SOMETHING_ELSE", body)
}

func TestDispatcher_SwallowsErrors(t *testing.T) {
	memberID := uuid.New()
	n := new(MockNotifier)
	n.On("Notify", mock.Anything, memberID, EventLoanApproved, mock.Anything).Return(errors.New("boom"))

	d := NewDispatcher(n, logger.NewNop(), time.Second)
	d.Dispatch(memberID, EventLoanApproved, map[string]interface{}{})
	d.Wait()

	n.AssertNumberOfCalls(t, "Notify", 1)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(uuid.New(), EventLoanApproved, nil)
		d.Wait()
	})
}
