package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberStatus represents the approval state of a SACCO member
type MemberStatus string

const (
	MemberStatusPending   MemberStatus = "pending"
	MemberStatusApproved  MemberStatus = "approved"
	MemberStatusSuspended MemberStatus = "suspended"
)

// Member is owned by the onboarding system; the ledger only reads it.
type Member struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	MemberNumber string       `json:"member_number" db:"member_number"`
	FirstName    string       `json:"first_name" db:"first_name"`
	LastName     string       `json:"last_name" db:"last_name"`
	Email        string       `json:"email" db:"email"`
	Phone        string       `json:"phone" db:"phone"`
	Status       MemberStatus `json:"status" db:"status"`
	DateApproved *time.Time   `json:"date_approved,omitempty" db:"date_approved"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// FullName returns the member's display name.
func (m *Member) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// IsApproved reports whether the member may transact.
func (m *Member) IsApproved() bool {
	return m.Status == MemberStatusApproved && m.DateApproved != nil
}

// MembershipMonths counts whole 30-day periods since approval.
func (m *Member) MembershipMonths(now time.Time) int {
	if m.DateApproved == nil || now.Before(*m.DateApproved) {
		return 0
	}
	days := int(now.Sub(*m.DateApproved).Hours() / 24)
	return days / 30
}

// SaccoSettings is the single administrative settings row.
type SaccoSettings struct {
	ID                         uuid.UUID       `json:"id" db:"id"`
	SaccoName                  string          `json:"sacco_name" db:"sacco_name"`
	MinimumMembershipMonths    int             `json:"minimum_membership_months" db:"minimum_membership_months"`
	ShareCapitalAmount         decimal.Decimal `json:"share_capital_amount" db:"share_capital_amount"`
	LoanMultiplier             decimal.Decimal `json:"loan_multiplier" db:"loan_multiplier"`
	DefaultLoanInterestRate    decimal.Decimal `json:"default_loan_interest_rate" db:"default_loan_interest_rate"`
	MaximumLoanPeriodMonths    int             `json:"maximum_loan_period_months" db:"maximum_loan_period_months"`
	RequireGuarantors          bool            `json:"require_guarantors" db:"require_guarantors"`
	MinimumGuarantorPercentage decimal.Decimal `json:"minimum_guarantor_percentage" db:"minimum_guarantor_percentage"`
	MinimumMonthlyInvestment   decimal.Decimal `json:"minimum_monthly_investment" db:"minimum_monthly_investment"`
	UpdatedAt                  time.Time       `json:"updated_at" db:"updated_at"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

// Value encodes as text so lib/pq sends it as json rather than bytea.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("type assertion to []byte failed")
}

// AuditLog records who moved which record into which state
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id" db:"actor_id"`
	MemberID   *uuid.UUID      `json:"member_id" db:"member_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	OldValues  json.RawMessage `json:"old_values" db:"old_values"`
	NewValues  json.RawMessage `json:"new_values" db:"new_values"`
	Notes      string          `json:"notes" db:"notes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
