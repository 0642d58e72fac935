package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

// QuoteFee prices the active fee of feeType for amount. Inactive and tiered
// fees quote zero.
func (s *Service) QuoteFee(ctx context.Context, feeType string, amount decimal.Decimal) (decimal.Decimal, error) {
	var fee decimal.Decimal
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		f, err := tx.Fees().FindActiveByType(ctx, feeType)
		if err != nil {
			return err
		}
		fee = money.Round(f.Calculate(amount))
		return nil
	})
	return fee, err
}

type ChargeFeeRequest struct {
	MemberID   uuid.UUID       `json:"member_id" validate:"required"`
	FeeType    string          `json:"fee_type" validate:"required"`
	BaseAmount decimal.Decimal `json:"base_amount" validate:"money"`
	AdminID    uuid.UUID       `json:"admin_id" validate:"required"`
	Reference  string          `json:"reference_number"`
}

// ChargeFee posts a completed fee_payment for the fee due on BaseAmount.
func (s *Service) ChargeFee(ctx context.Context, req *ChargeFeeRequest) (*domain.Transaction, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	var txn *domain.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Members().LockByID(ctx, req.MemberID); err != nil {
			return err
		}
		f, err := tx.Fees().FindActiveByType(ctx, req.FeeType)
		if err != nil {
			return err
		}
		amount := money.Round(f.Calculate(req.BaseAmount))
		if !amount.IsPositive() {
			return errors.NewValidation("fee_type", "no fee is due for this amount")
		}
		adminID := req.AdminID
		txn, err = s.PostCompletedTx(ctx, tx, PostRequest{
			MemberID:    req.MemberID,
			Type:        domain.TransactionTypeFeePayment,
			Amount:      amount,
			Category:    req.FeeType,
			Description: f.Description,
			Reference:   req.Reference,
			ActorID:     &adminID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateBalance(ctx, req.MemberID)
	s.logger.Info("Fee charged", map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"member_id":      txn.MemberID,
		"fee_type":       req.FeeType,
		"amount":         txn.Amount.String(),
	})
	return txn, nil
}
