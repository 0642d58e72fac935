package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanType is a loan product configured by the SACCO.
type LoanType struct {
	ID                      uuid.UUID       `json:"id" db:"id"`
	Name                    string          `json:"name" db:"name"`
	InterestRate            decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	MaximumAmount           decimal.Decimal `json:"maximum_amount" db:"maximum_amount"`
	MaximumPeriodMonths     int             `json:"maximum_period_months" db:"maximum_period_months"`
	MinimumMembershipMonths int             `json:"minimum_membership_months" db:"minimum_membership_months"`
	RequiresGuarantor       bool            `json:"requires_guarantor" db:"requires_guarantor"`
	IsActive                bool            `json:"is_active" db:"is_active"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
}

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusDisbursed ApplicationStatus = "disbursed"
	ApplicationStatusCancelled ApplicationStatus = "cancelled"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending:  {ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusCancelled},
	ApplicationStatusApproved: {ApplicationStatusDisbursed, ApplicationStatusCancelled},
}

// CanTransitionTo reports whether the application state machine allows from -> to.
func (s ApplicationStatus) CanTransitionTo(to ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LoanApplication is a member's request for credit.
type LoanApplication struct {
	ID                    uuid.UUID         `json:"id" db:"id"`
	ApplicantID           uuid.UUID         `json:"applicant_id" db:"applicant_id"`
	LoanTypeID            uuid.UUID         `json:"loan_type_id" db:"loan_type_id"`
	AmountRequested       decimal.Decimal   `json:"amount_requested" db:"amount_requested"`
	AmountApproved        decimal.Decimal   `json:"amount_approved" db:"amount_approved"`
	Purpose               string            `json:"purpose" db:"purpose"`
	RepaymentPeriodMonths int               `json:"repayment_period_months" db:"repayment_period_months"`
	InterestRate          decimal.Decimal   `json:"interest_rate" db:"interest_rate"`
	Status                ApplicationStatus `json:"status" db:"status"`
	MonthlyPayment        decimal.Decimal   `json:"monthly_payment" db:"monthly_payment"`
	TotalInterest         decimal.Decimal   `json:"total_interest" db:"total_interest"`
	TotalRepayment        decimal.Decimal   `json:"total_repayment" db:"total_repayment"`
	ReviewedBy            *uuid.UUID        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt            *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes           string            `json:"review_notes" db:"review_notes"`
	RejectionReason       string            `json:"rejection_reason" db:"rejection_reason"`
	DisbursedBy           *uuid.UUID        `json:"disbursed_by,omitempty" db:"disbursed_by"`
	DisbursedAt           *time.Time        `json:"disbursed_at,omitempty" db:"disbursed_at"`
	DisbursementReference string            `json:"disbursement_reference" db:"disbursement_reference"`
	DisbursementCost      decimal.Decimal   `json:"disbursement_cost" db:"disbursement_cost"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

type GuarantorStatus string

const (
	GuarantorStatusPending   GuarantorStatus = "pending"
	GuarantorStatusConfirmed GuarantorStatus = "confirmed"
	GuarantorStatusDeclined  GuarantorStatus = "declined"
	GuarantorStatusWithdrawn GuarantorStatus = "withdrawn"
)

// Counts reports whether the guarantee still counts toward the application's coverage cap.
func (s GuarantorStatus) Counts() bool {
	return s == GuarantorStatusPending || s == GuarantorStatusConfirmed
}

// LoanGuarantor is a pledge by one member to cover part of another's loan.
type LoanGuarantor struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	ApplicationID        uuid.UUID       `json:"application_id" db:"application_id"`
	GuarantorID          uuid.UUID       `json:"guarantor_id" db:"guarantor_id"`
	GuaranteedAmount     decimal.Decimal `json:"guaranteed_amount" db:"guaranteed_amount"`
	GuaranteedPercentage decimal.Decimal `json:"guaranteed_percentage" db:"guaranteed_percentage"`
	Status               GuarantorStatus `json:"status" db:"status"`
	ResponseNotes        string          `json:"response_notes" db:"response_notes"`
	RespondedAt          *time.Time      `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "active"
	LoanStatusPaidOff    LoanStatus = "paid_off"
	LoanStatusOverdue    LoanStatus = "overdue"
	LoanStatusDefaulted  LoanStatus = "defaulted"
	LoanStatusWrittenOff LoanStatus = "written_off"
)

// Open reports whether the loan still blocks a new application.
func (s LoanStatus) Open() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// Loan is created exactly once, when an approved application is disbursed.
type Loan struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	ApplicationID          uuid.UUID       `json:"application_id" db:"application_id"`
	BorrowerID             uuid.UUID       `json:"borrower_id" db:"borrower_id"`
	LoanNumber             string          `json:"loan_number" db:"loan_number"`
	PrincipalAmount        decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	InterestRate           decimal.Decimal `json:"interest_rate" db:"interest_rate"`
	RepaymentPeriodMonths  int             `json:"repayment_period_months" db:"repayment_period_months"`
	MonthlyPayment         decimal.Decimal `json:"monthly_payment" db:"monthly_payment"`
	TotalInterest          decimal.Decimal `json:"total_interest" db:"total_interest"`
	TotalAmount            decimal.Decimal `json:"total_amount" db:"total_amount"`
	AmountPaid             decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	BalanceRemaining       decimal.Decimal `json:"balance_remaining" db:"balance_remaining"`
	DisbursementDate       time.Time       `json:"disbursement_date" db:"disbursement_date"`
	DisbursementReference  string          `json:"disbursement_reference" db:"disbursement_reference"`
	ExpectedCompletionDate time.Time       `json:"expected_completion_date" db:"expected_completion_date"`
	ActualCompletionDate   *time.Time      `json:"actual_completion_date,omitempty" db:"actual_completion_date"`
	Status                 LoanStatus      `json:"status" db:"status"`
	NextPaymentDate        time.Time       `json:"next_payment_date" db:"next_payment_date"`
	LastPaymentDate        *time.Time      `json:"last_payment_date,omitempty" db:"last_payment_date"`
	PenaltyAmount          decimal.Decimal `json:"penalty_amount" db:"penalty_amount"`
	TotalPenaltiesPaid     decimal.Decimal `json:"total_penalties_paid" db:"total_penalties_paid"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// RecomputeBalance enforces balance_remaining = total_amount - amount_paid.
func (l *Loan) RecomputeBalance() {
	l.BalanceRemaining = l.TotalAmount.Sub(l.AmountPaid)
}

// DaysOverdue counts days past next_payment_date for loans still running.
func (l *Loan) DaysOverdue(now time.Time) int {
	if l.Status == LoanStatusPaidOff || l.Status == LoanStatusWrittenOff {
		return 0
	}
	today := truncateDay(now)
	due := truncateDay(l.NextPaymentDate)
	if !today.After(due) {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}

// PendingPenalty is the part of applied penalties not yet settled.
func (l *Loan) PendingPenalty() decimal.Decimal {
	pending := l.PenaltyAmount.Sub(l.TotalPenaltiesPaid)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// LoanSchedule is one row of an amortization table.
type LoanSchedule struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	LoanID           uuid.UUID       `json:"loan_id" db:"loan_id"`
	PaymentNumber    int             `json:"payment_number" db:"payment_number"`
	DueDate          time.Time       `json:"due_date" db:"due_date"`
	ScheduledPayment decimal.Decimal `json:"scheduled_payment" db:"scheduled_payment"`
	PrincipalPortion decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	BeginningBalance decimal.Decimal `json:"beginning_balance" db:"beginning_balance"`
	EndingBalance    decimal.Decimal `json:"ending_balance" db:"ending_balance"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

type PaymentType string

const (
	PaymentTypeRegular PaymentType = "regular"
	PaymentTypePartial PaymentType = "partial"
	PaymentTypeEarly   PaymentType = "early"
	PaymentTypeFull    PaymentType = "full"
	PaymentTypePenalty PaymentType = "penalty"
)

// LoanPayment is a repayment submitted against a loan.
type LoanPayment struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	LoanID               uuid.UUID       `json:"loan_id" db:"loan_id"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	PaymentType          PaymentType     `json:"payment_type" db:"payment_type"`
	PaymentMethod        string          `json:"payment_method" db:"payment_method"`
	TransactionReference string          `json:"transaction_reference" db:"transaction_reference"`
	Status               PaymentStatus   `json:"status" db:"status"`
	PenaltyAmount        decimal.Decimal `json:"penalty_amount" db:"penalty_amount"`
	InterestAmount       decimal.Decimal `json:"interest_amount" db:"interest_amount"`
	PrincipalAmount      decimal.Decimal `json:"principal_amount" db:"principal_amount"`
	ConfirmedBy          *uuid.UUID      `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	RejectionReason      string          `json:"rejection_reason" db:"rejection_reason"`
	AdminNotes           string          `json:"admin_notes" db:"admin_notes"`
	PaymentDate          time.Time       `json:"payment_date" db:"payment_date"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

type PenaltyType string

const (
	PenaltyTypeLatePayment     PenaltyType = "late_payment"
	PenaltyTypeOverdueInterest PenaltyType = "overdue_interest"
	PenaltyTypeProcessingFee   PenaltyType = "processing_fee"
	PenaltyTypeOther           PenaltyType = "other"
)

func (t PenaltyType) Valid() bool {
	switch t {
	case PenaltyTypeLatePayment, PenaltyTypeOverdueInterest, PenaltyTypeProcessingFee, PenaltyTypeOther:
		return true
	}
	return false
}

// LoanPenalty is a charge applied to a loan; waived penalties stop counting.
type LoanPenalty struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	LoanID       uuid.UUID       `json:"loan_id" db:"loan_id"`
	PenaltyType  PenaltyType     `json:"penalty_type" db:"penalty_type"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	DaysOverdue  int             `json:"days_overdue" db:"days_overdue"`
	Reason       string          `json:"reason" db:"reason"`
	AppliedBy    uuid.UUID       `json:"applied_by" db:"applied_by"`
	AppliedAt    time.Time       `json:"applied_at" db:"applied_at"`
	IsWaived     bool            `json:"is_waived" db:"is_waived"`
	WaivedBy     *uuid.UUID      `json:"waived_by,omitempty" db:"waived_by"`
	WaivedAt     *time.Time      `json:"waived_at,omitempty" db:"waived_at"`
	WaiverReason string          `json:"waiver_reason" db:"waiver_reason"`
}

type CollateralType string

const (
	CollateralTypeProperty  CollateralType = "property"
	CollateralTypeVehicle   CollateralType = "vehicle"
	CollateralTypeEquipment CollateralType = "equipment"
	CollateralTypeSavings   CollateralType = "savings"
	CollateralTypeShares    CollateralType = "shares"
	CollateralTypeOther     CollateralType = "other"
)

// LoanCollateral is an asset pledged against a loan application. Documents
// are references into the document store, not file contents.
type LoanCollateral struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	ApplicationID     uuid.UUID       `json:"application_id" db:"application_id"`
	CollateralType    CollateralType  `json:"collateral_type" db:"collateral_type"`
	Description       string          `json:"description" db:"description"`
	EstimatedValue    decimal.Decimal `json:"estimated_value" db:"estimated_value"`
	OwnershipDocument string          `json:"ownership_document" db:"ownership_document"`
	ValuationReport   string          `json:"valuation_report" db:"valuation_report"`
	IsVerified        bool            `json:"is_verified" db:"is_verified"`
	VerifiedBy        *uuid.UUID      `json:"verified_by,omitempty" db:"verified_by"`
	VerificationDate  *time.Time      `json:"verification_date,omitempty" db:"verification_date"`
	VerificationNotes string          `json:"verification_notes" db:"verification_notes"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
