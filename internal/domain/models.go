// Package domain re-exports core domain types so internal code can import
// `sacco/internal/domain` while using definitions from `sacco/pkg/domain`.
package domain

import (
	"time"

	pkg "sacco/pkg/domain"
)

// Members, settings and audit.
type (
	MemberStatus  = pkg.MemberStatus
	Member        = pkg.Member
	SaccoSettings = pkg.SaccoSettings
	Metadata      = pkg.Metadata
	AuditLog      = pkg.AuditLog
)

const (
	MemberStatusPending   = pkg.MemberStatusPending
	MemberStatusApproved  = pkg.MemberStatusApproved
	MemberStatusSuspended = pkg.MemberStatusSuspended
)

// Investments.
type (
	InvestmentType    = pkg.InvestmentType
	InvestmentStatus  = pkg.InvestmentStatus
	Investment        = pkg.Investment
	InvestmentSummary = pkg.InvestmentSummary
	TargetType        = pkg.TargetType
	PeriodType        = pkg.PeriodType
	InvestmentTarget  = pkg.InvestmentTarget
)

const (
	InvestmentTypeShareCapital      = pkg.InvestmentTypeShareCapital
	InvestmentTypeMonthlyInvestment = pkg.InvestmentTypeMonthlyInvestment
	InvestmentTypeSpecialDeposit    = pkg.InvestmentTypeSpecialDeposit
	InvestmentStatusPending         = pkg.InvestmentStatusPending
	InvestmentStatusConfirmed       = pkg.InvestmentStatusConfirmed
	InvestmentStatusRejected        = pkg.InvestmentStatusRejected
	TargetTypePersonal              = pkg.TargetTypePersonal
	TargetTypeSaccoWide             = pkg.TargetTypeSaccoWide
	PeriodTypeMonthly               = pkg.PeriodTypeMonthly
	PeriodTypeQuarterly             = pkg.PeriodTypeQuarterly
	PeriodTypeAnnually              = pkg.PeriodTypeAnnually
)

// Loans.
type (
	LoanType          = pkg.LoanType
	ApplicationStatus = pkg.ApplicationStatus
	LoanApplication   = pkg.LoanApplication
	GuarantorStatus   = pkg.GuarantorStatus
	LoanGuarantor     = pkg.LoanGuarantor
	LoanStatus        = pkg.LoanStatus
	Loan              = pkg.Loan
	LoanSchedule      = pkg.LoanSchedule
	PaymentStatus     = pkg.PaymentStatus
	PaymentType       = pkg.PaymentType
	LoanPayment       = pkg.LoanPayment
	PenaltyType       = pkg.PenaltyType
	LoanPenalty       = pkg.LoanPenalty
	CollateralType    = pkg.CollateralType
	LoanCollateral    = pkg.LoanCollateral
)

const (
	ApplicationStatusPending   = pkg.ApplicationStatusPending
	ApplicationStatusApproved  = pkg.ApplicationStatusApproved
	ApplicationStatusRejected  = pkg.ApplicationStatusRejected
	ApplicationStatusDisbursed = pkg.ApplicationStatusDisbursed
	ApplicationStatusCancelled = pkg.ApplicationStatusCancelled
	GuarantorStatusPending     = pkg.GuarantorStatusPending
	GuarantorStatusConfirmed   = pkg.GuarantorStatusConfirmed
	GuarantorStatusDeclined    = pkg.GuarantorStatusDeclined
	GuarantorStatusWithdrawn   = pkg.GuarantorStatusWithdrawn
	LoanStatusActive           = pkg.LoanStatusActive
	LoanStatusPaidOff          = pkg.LoanStatusPaidOff
	LoanStatusOverdue          = pkg.LoanStatusOverdue
	LoanStatusDefaulted        = pkg.LoanStatusDefaulted
	LoanStatusWrittenOff       = pkg.LoanStatusWrittenOff
	PaymentStatusPending       = pkg.PaymentStatusPending
	PaymentStatusConfirmed     = pkg.PaymentStatusConfirmed
	PaymentStatusRejected      = pkg.PaymentStatusRejected
	PaymentTypeRegular         = pkg.PaymentTypeRegular
	PaymentTypePartial         = pkg.PaymentTypePartial
	PaymentTypeEarly           = pkg.PaymentTypeEarly
	PaymentTypeFull            = pkg.PaymentTypeFull
	PaymentTypePenalty         = pkg.PaymentTypePenalty
	PenaltyTypeLatePayment     = pkg.PenaltyTypeLatePayment
	PenaltyTypeOverdueInterest = pkg.PenaltyTypeOverdueInterest
	PenaltyTypeProcessingFee   = pkg.PenaltyTypeProcessingFee
	PenaltyTypeOther           = pkg.PenaltyTypeOther
	CollateralTypeProperty     = pkg.CollateralTypeProperty
	CollateralTypeVehicle      = pkg.CollateralTypeVehicle
	CollateralTypeEquipment    = pkg.CollateralTypeEquipment
	CollateralTypeSavings      = pkg.CollateralTypeSavings
	CollateralTypeShares       = pkg.CollateralTypeShares
	CollateralTypeOther        = pkg.CollateralTypeOther
)

// General ledger.
type (
	TransactionType      = pkg.TransactionType
	Direction            = pkg.Direction
	TransactionStatus    = pkg.TransactionStatus
	Transaction          = pkg.Transaction
	MemberBalance        = pkg.MemberBalance
	TransactionReceipt   = pkg.TransactionReceipt
	FeeCalculation       = pkg.FeeCalculation
	TransactionFee       = pkg.TransactionFee
	BatchType            = pkg.BatchType
	BatchStatus          = pkg.BatchStatus
	TransactionBatch     = pkg.TransactionBatch
	BatchItem            = pkg.BatchItem
	Frequency            = pkg.Frequency
	RecurringStatus      = pkg.RecurringStatus
	RecurringTransaction = pkg.RecurringTransaction
)

const (
	TransactionTypeDeposit          = pkg.TransactionTypeDeposit
	TransactionTypeWithdrawal       = pkg.TransactionTypeWithdrawal
	TransactionTypeLoanDisbursement = pkg.TransactionTypeLoanDisbursement
	TransactionTypeLoanPayment      = pkg.TransactionTypeLoanPayment
	TransactionTypeDividendPayment  = pkg.TransactionTypeDividendPayment
	TransactionTypeFeePayment       = pkg.TransactionTypeFeePayment
	TransactionTypePenaltyPayment   = pkg.TransactionTypePenaltyPayment
	TransactionTypeTransferIn       = pkg.TransactionTypeTransferIn
	TransactionTypeTransferOut      = pkg.TransactionTypeTransferOut
	TransactionTypeAdjustment       = pkg.TransactionTypeAdjustment
	DirectionCredit                 = pkg.DirectionCredit
	DirectionDebit                  = pkg.DirectionDebit
	DirectionNeutral                = pkg.DirectionNeutral
	TransactionStatusPending        = pkg.TransactionStatusPending
	TransactionStatusCompleted      = pkg.TransactionStatusCompleted
	TransactionStatusFailed         = pkg.TransactionStatusFailed
	TransactionStatusCancelled      = pkg.TransactionStatusCancelled
	TransactionStatusReversed       = pkg.TransactionStatusReversed
	FeeCalculationFixed             = pkg.FeeCalculationFixed
	FeeCalculationPercentage        = pkg.FeeCalculationPercentage
	FeeCalculationTiered            = pkg.FeeCalculationTiered
	BatchTypeDividendPayment        = pkg.BatchTypeDividendPayment
	BatchTypeFeeCollection          = pkg.BatchTypeFeeCollection
	BatchTypeBulkTransfer           = pkg.BatchTypeBulkTransfer
	BatchStatusPending              = pkg.BatchStatusPending
	BatchStatusProcessing           = pkg.BatchStatusProcessing
	BatchStatusCompleted            = pkg.BatchStatusCompleted
	BatchStatusPartiallyCompleted   = pkg.BatchStatusPartiallyCompleted
	BatchStatusFailed               = pkg.BatchStatusFailed
	FrequencyDaily                  = pkg.FrequencyDaily
	FrequencyWeekly                 = pkg.FrequencyWeekly
	FrequencyMonthly                = pkg.FrequencyMonthly
	FrequencyQuarterly              = pkg.FrequencyQuarterly
	FrequencyAnnually               = pkg.FrequencyAnnually
	RecurringStatusActive           = pkg.RecurringStatusActive
	RecurringStatusPaused           = pkg.RecurringStatusPaused
	RecurringStatusCancelled        = pkg.RecurringStatusCancelled
	RecurringStatusCompleted        = pkg.RecurringStatusCompleted
)

// AddMonths moves t forward by n calendar months, clamping to the month end.
func AddMonths(t time.Time, n int) time.Time { return pkg.AddMonths(t, n) }

// Dividends.
type (
	DividendPayment = pkg.DividendPayment
)
