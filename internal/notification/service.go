// Package notification implements member notifications for ledger events.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/logger"
	"sacco/pkg/mailer"
	"sacco/pkg/money"
)

// Event types emitted by the ledger services.
const (
	EventInvestmentConfirmed  = "INVESTMENT_CONFIRMED"
	EventInvestmentRejected   = "INVESTMENT_REJECTED"
	EventLoanApproved         = "LOAN_APPROVED"
	EventLoanRejected         = "LOAN_REJECTED"
	EventLoanDisbursed        = "LOAN_DISBURSED"
	EventPaymentConfirmed     = "PAYMENT_CONFIRMED"
	EventLoanPaidOff          = "LOAN_PAID_OFF"
	EventTransactionCompleted = "TRANSACTION_COMPLETED"
	EventTransactionReversed  = "TRANSACTION_REVERSED"
	EventDividendPaid         = "DIVIDEND_PAID"
)

// AuditRepository defines the interface for audit logging.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Directory resolves a member's email address. An empty address skips email.
type Directory interface {
	Email(ctx context.Context, memberID uuid.UUID) (string, error)
}

// ChannelType represents the delivery method.
type ChannelType string

const (
	ChannelLog   ChannelType = "LOG"
	ChannelEmail ChannelType = "EMAIL"
)

// Notification represents a message to be sent.
type Notification struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	Type      string
	Channel   ChannelType
	Subject   string
	Body      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Service defines the notification service interface.
type Service interface {
	Notify(ctx context.Context, memberID uuid.UUID, eventType string, data map[string]interface{}) error
}

// DefaultService logs every notification, writes an audit row and sends
// email when a mailer and an address are available.
type DefaultService struct {
	logger    logger.Logger
	auditRepo AuditRepository
	directory Directory
	mailer    mailer.Sender
}

// NewService creates a new notification service. auditRepo, directory and
// sender may be nil.
func NewService(log logger.Logger, auditRepo AuditRepository, directory Directory, sender mailer.Sender) *DefaultService {
	return &DefaultService{
		logger:    log,
		auditRepo: auditRepo,
		directory: directory,
		mailer:    sender,
	}
}

// Notify renders the event template and delivers it.
func (s *DefaultService) Notify(ctx context.Context, memberID uuid.UUID, eventType string, data map[string]interface{}) error {
	subject, body := render(eventType, data)
	n := &Notification{
		ID:        uuid.New(),
		MemberID:  memberID,
		Type:      eventType,
		Channel:   ChannelLog,
		Subject:   subject,
		Body:      body,
		Metadata:  data,
		CreatedAt: time.Now().UTC(),
	}
	return s.SendRaw(ctx, n)
}

// SendRaw delivers an already rendered notification.
func (s *DefaultService) SendRaw(ctx context.Context, n *Notification) error {
	var sendErr error
	if s.mailer != nil && s.directory != nil {
		to, err := s.directory.Email(ctx, n.MemberID)
		switch {
		case err != nil:
			sendErr = fmt.Errorf("resolve member email: %w", err)
		case to != "":
			n.Channel = ChannelEmail
			sendErr = s.mailer.Send(to, n.Subject, n.Body)
		}
	}

	s.logger.Info("Notification sent", map[string]interface{}{
		"notification_id": n.ID,
		"member_id":       n.MemberID,
		"channel":         n.Channel,
		"type":            n.Type,
		"subject":         n.Subject,
	})

	if s.auditRepo != nil {
		newVals, _ := json.Marshal(domain.Metadata{
			"channel": n.Channel,
			"type":    n.Type,
			"subject": n.Subject,
			"body":    n.Body,
		})
		memberID := n.MemberID
		err := s.auditRepo.Create(ctx, &domain.AuditLog{
			ID:         uuid.New(),
			MemberID:   &memberID,
			Action:     "NOTIFICATION_SENT",
			EntityType: "notification",
			EntityID:   n.ID.String(),
			NewValues:  newVals,
			CreatedAt:  n.CreatedAt,
		})
		if err != nil {
			s.logger.Error("Failed to create audit log for notification", map[string]interface{}{
				"error":           err.Error(),
				"notification_id": n.ID,
			})
		}
	}

	return sendErr
}

func render(eventType string, data map[string]interface{}) (subject, body string) {
	amount := formatAmount(data["amount"])
	switch eventType {
	case EventInvestmentConfirmed:
		return "Investment Confirmed",
			fmt.Sprintf("Your %v contribution of %s has been confirmed.", data["investment_type"], amount)
	case EventInvestmentRejected:
		return "Investment Rejected",
			fmt.Sprintf("Your contribution of %s was rejected: %v.", amount, data["reason"])
	case EventLoanApproved:
		return "Loan Approved",
			fmt.Sprintf("Your loan application for %s was approved. Monthly payment: %s over %v months.",
				amount, formatAmount(data["monthly_payment"]), data["months"])
	case EventLoanRejected:
		return "Loan Application Rejected",
			fmt.Sprintf("Your loan application was rejected: %v.", data["reason"])
	case EventLoanDisbursed:
		return "Loan Disbursed",
			fmt.Sprintf("Loan %v of %s has been disbursed. First payment is due on %v.",
				data["loan_number"], amount, data["next_payment_date"])
	case EventPaymentConfirmed:
		return "Payment Confirmed",
			fmt.Sprintf("Your payment of %s on loan %v was confirmed. Remaining balance: %s.",
				amount, data["loan_number"], formatAmount(data["balance_remaining"]))
	case EventLoanPaidOff:
		return "Loan Paid Off",
			fmt.Sprintf("Congratulations, loan %v is fully repaid.", data["loan_number"])
	case EventTransactionCompleted:
		return "Transaction Completed",
			fmt.Sprintf("Transaction %v of %s completed. Balance: %s.",
				data["transaction_id"], amount, formatAmount(data["balance_after"]))
	case EventTransactionReversed:
		return "Transaction Reversed",
			fmt.Sprintf("Transaction %v of %s was reversed: %v.", data["transaction_id"], amount, data["reason"])
	case EventDividendPaid:
		return "Dividend Paid",
			fmt.Sprintf("Your %v dividend of %s has been credited.", data["year"], amount)
	}
	return "Notification", fmt.Sprintf("Event: %s", eventType)
}

func formatAmount(v interface{}) string {
	switch a := v.(type) {
	case decimal.Decimal:
		return money.Format(a)
	case *decimal.Decimal:
		if a != nil {
			return money.Format(*a)
		}
	case nil:
		return money.Format(decimal.Zero)
	}
	return fmt.Sprint(v)
}
