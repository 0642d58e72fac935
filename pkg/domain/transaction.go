package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit          TransactionType = "deposit"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
	TransactionTypeLoanDisbursement TransactionType = "loan_disbursement"
	TransactionTypeLoanPayment      TransactionType = "loan_payment"
	TransactionTypeDividendPayment  TransactionType = "dividend_payment"
	TransactionTypeFeePayment       TransactionType = "fee_payment"
	TransactionTypePenaltyPayment   TransactionType = "penalty_payment"
	TransactionTypeTransferIn       TransactionType = "transfer_in"
	TransactionTypeTransferOut      TransactionType = "transfer_out"
	TransactionTypeAdjustment       TransactionType = "adjustment"
)

var transactionPrefixes = map[TransactionType]string{
	TransactionTypeDeposit:          "DEP",
	TransactionTypeWithdrawal:       "WDR",
	TransactionTypeLoanDisbursement: "LDR",
	TransactionTypeLoanPayment:      "LPY",
	TransactionTypeDividendPayment:  "DIV",
	TransactionTypeFeePayment:       "FEE",
	TransactionTypePenaltyPayment:   "PEN",
	TransactionTypeTransferIn:       "TIN",
	TransactionTypeTransferOut:      "TOU",
	TransactionTypeAdjustment:       "ADJ",
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	_, ok := transactionPrefixes[t]
	return ok
}

// Prefix returns the business id prefix for the type, TXN when unknown.
func (t TransactionType) Prefix() string {
	if p, ok := transactionPrefixes[t]; ok {
		return p
	}
	return "TXN"
}

// Direction is the effect of a completed transaction on a member balance.
type Direction string

const (
	DirectionCredit  Direction = "credit"
	DirectionDebit   Direction = "debit"
	DirectionNeutral Direction = ""
)

// Opposite flips credit and debit.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionCredit:
		return DirectionDebit
	case DirectionDebit:
		return DirectionCredit
	}
	return DirectionNeutral
}

// Direction classifies the type. Adjustments have no inherent direction.
func (t TransactionType) Direction() Direction {
	switch t {
	case TransactionTypeDeposit, TransactionTypeLoanDisbursement, TransactionTypeDividendPayment, TransactionTypeTransferIn:
		return DirectionCredit
	case TransactionTypeWithdrawal, TransactionTypeLoanPayment, TransactionTypeFeePayment, TransactionTypePenaltyPayment, TransactionTypeTransferOut:
		return DirectionDebit
	}
	return DirectionNeutral
}

// Inverse is the type used to reverse a transaction of type t.
func (t TransactionType) Inverse() TransactionType {
	switch t {
	case TransactionTypeDeposit:
		return TransactionTypeWithdrawal
	case TransactionTypeWithdrawal:
		return TransactionTypeDeposit
	case TransactionTypeTransferIn:
		return TransactionTypeTransferOut
	case TransactionTypeTransferOut:
		return TransactionTypeTransferIn
	}
	return TransactionTypeAdjustment
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// Transaction is one append-only money movement for a member.
type Transaction struct {
	ID                    uuid.UUID         `json:"id" db:"id"`
	TransactionID         string            `json:"transaction_id" db:"transaction_id"`
	MemberID              uuid.UUID         `json:"member_id" db:"member_id"`
	Type                  TransactionType   `json:"transaction_type" db:"transaction_type"`
	Category              string            `json:"category" db:"category"`
	Amount                decimal.Decimal   `json:"amount" db:"amount"`
	AdjustmentDirection   Direction         `json:"adjustment_direction,omitempty" db:"adjustment_direction"`
	Status                TransactionStatus `json:"status" db:"status"`
	BalanceBefore         decimal.Decimal   `json:"balance_before" db:"balance_before"`
	BalanceAfter          decimal.Decimal   `json:"balance_after" db:"balance_after"`
	Description           string            `json:"description" db:"description"`
	ReferenceNumber       string            `json:"reference_number" db:"reference_number"`
	ReversedTransactionID *uuid.UUID        `json:"reversed_transaction_id,omitempty" db:"reversed_transaction_id"`
	ReversalReason        string            `json:"reversal_reason" db:"reversal_reason"`
	ProcessedBy           *uuid.UUID        `json:"processed_by,omitempty" db:"processed_by"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty" db:"processed_at"`
	ProcessingNotes       string            `json:"processing_notes" db:"processing_notes"`
	TransactionDate       time.Time         `json:"transaction_date" db:"transaction_date"`
	CreatedAt             time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at" db:"updated_at"`
}

// Effect is the transaction's direction, honouring the adjustment direction.
func (t *Transaction) Effect() Direction {
	if t.Type == TransactionTypeAdjustment {
		return t.AdjustmentDirection
	}
	return t.Type.Direction()
}

// Apply moves balance by the transaction amount in its direction.
func (t *Transaction) Apply(balance decimal.Decimal) decimal.Decimal {
	switch t.Effect() {
	case DirectionCredit:
		return balance.Add(t.Amount)
	case DirectionDebit:
		return balance.Sub(t.Amount)
	}
	return balance
}

// MemberBalance is a rebuildable projection of a member's ledger position.
type MemberBalance struct {
	MemberID            uuid.UUID       `json:"member_id" db:"member_id"`
	CurrentBalance      decimal.Decimal `json:"current_balance" db:"current_balance"`
	AvailableBalance    decimal.Decimal `json:"available_balance" db:"available_balance"`
	ShareCapitalBalance decimal.Decimal `json:"share_capital_balance" db:"share_capital_balance"`
	SavingsBalance      decimal.Decimal `json:"savings_balance" db:"savings_balance"`
	LoanBalance         decimal.Decimal `json:"loan_balance" db:"loan_balance"`
	PendingDeposits     decimal.Decimal `json:"pending_deposits" db:"pending_deposits"`
	PendingWithdrawals  decimal.Decimal `json:"pending_withdrawals" db:"pending_withdrawals"`
	LastTransactionDate *time.Time      `json:"last_transaction_date,omitempty" db:"last_transaction_date"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// TransactionReceipt is issued once per completed transaction.
type TransactionReceipt struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	ReceiptNumber string    `json:"receipt_number" db:"receipt_number"`
	ReceiptData   Metadata  `json:"receipt_data" db:"receipt_data"`
	IssuedAt      time.Time `json:"issued_at" db:"issued_at"`
}

type FeeCalculation string

const (
	FeeCalculationFixed      FeeCalculation = "fixed"
	FeeCalculationPercentage FeeCalculation = "percentage"
	FeeCalculationTiered     FeeCalculation = "tiered"
)

// TransactionFee is a configured charge.
type TransactionFee struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	FeeType           string           `json:"fee_type" db:"fee_type"`
	Description       string           `json:"description" db:"description"`
	CalculationMethod FeeCalculation   `json:"calculation_method" db:"calculation_method"`
	FixedAmount       *decimal.Decimal `json:"fixed_amount,omitempty" db:"fixed_amount"`
	PercentageRate    *decimal.Decimal `json:"percentage_rate,omitempty" db:"percentage_rate"`
	MinimumFee        *decimal.Decimal `json:"minimum_fee,omitempty" db:"minimum_fee"`
	MaximumFee        *decimal.Decimal `json:"maximum_fee,omitempty" db:"maximum_fee"`
	IsActive          bool             `json:"is_active" db:"is_active"`
}

// Calculate returns the unrounded fee for amount. Tiered fees are not priced.
func (f *TransactionFee) Calculate(amount decimal.Decimal) decimal.Decimal {
	if !f.IsActive {
		return decimal.Zero
	}
	switch f.CalculationMethod {
	case FeeCalculationFixed:
		if f.FixedAmount == nil {
			return decimal.Zero
		}
		return *f.FixedAmount
	case FeeCalculationPercentage:
		if f.PercentageRate == nil || f.PercentageRate.IsZero() {
			return decimal.Zero
		}
		fee := amount.Mul(*f.PercentageRate).Div(decimal.NewFromInt(100))
		if f.MinimumFee != nil && fee.LessThan(*f.MinimumFee) {
			fee = *f.MinimumFee
		}
		if f.MaximumFee != nil && fee.GreaterThan(*f.MaximumFee) {
			fee = *f.MaximumFee
		}
		return fee
	}
	return decimal.Zero
}

type BatchType string

const (
	BatchTypeDividendPayment BatchType = "dividend_payment"
	BatchTypeFeeCollection   BatchType = "fee_collection"
	BatchTypeBulkTransfer    BatchType = "bulk_transfer"
)

type BatchStatus string

const (
	BatchStatusPending            BatchStatus = "pending"
	BatchStatusProcessing         BatchStatus = "processing"
	BatchStatusCompleted          BatchStatus = "completed"
	BatchStatusPartiallyCompleted BatchStatus = "partially_completed"
	BatchStatusFailed             BatchStatus = "failed"
)

// TransactionBatch groups transactions posted by one bulk run.
type TransactionBatch struct {
	ID                     uuid.UUID       `json:"id" db:"id"`
	BatchID                string          `json:"batch_id" db:"batch_id"`
	BatchType              BatchType       `json:"batch_type" db:"batch_type"`
	Description            string          `json:"description" db:"description"`
	TotalTransactions      int             `json:"total_transactions" db:"total_transactions"`
	SuccessfulTransactions int             `json:"successful_transactions" db:"successful_transactions"`
	FailedTransactions     int             `json:"failed_transactions" db:"failed_transactions"`
	TotalAmount            decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status                 BatchStatus     `json:"status" db:"status"`
	CreatedBy              uuid.UUID       `json:"created_by" db:"created_by"`
	ErrorLog               string          `json:"error_log" db:"error_log"`
	StartedAt              *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
}

// BatchItem links a batch to one of its transactions.
type BatchItem struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	BatchID        uuid.UUID  `json:"batch_id" db:"batch_id"`
	TransactionID  *uuid.UUID `json:"transaction_id,omitempty" db:"transaction_id"`
	MemberID       uuid.UUID  `json:"member_id" db:"member_id"`
	SequenceNumber int        `json:"sequence_number" db:"sequence_number"`
	ErrorMessage   string     `json:"error_message" db:"error_message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
