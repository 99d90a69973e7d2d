package coinledger

import (
	"context"
	"errors"
)

// SettleCoins computes the charge for a call: ceil(duration/60 * pricePerMinute),
// rounding up so the platform never undercharges a started minute fraction.
func SettleCoins(durationSeconds int64, pricePerMinute int64) int64 {
	if durationSeconds <= 0 || pricePerMinute <= 0 {
		return 0
	}
	return (durationSeconds*pricePerMinute + secondsPerMinute - 1) / secondsPerMinute
}

// Settle posts the economic effect of a completed call: debit the payer and
// credit the earner by the same amount, all-or-nothing. A zero-coin call is
// recorded but posts no transactions. When the payer cannot cover the charge
// nothing settles: the call is stored flagged for review with a failed audit
// row, and ErrInsufficientFunds is returned.
func (service *Service) Settle(ctx context.Context, input CallInput) (Call, error) {
	coinsDeducted := SettleCoins(input.DurationSeconds, input.PricePerMinute)
	call, operationError := service.settleOnce(ctx, input, coinsDeducted)
	if errors.Is(operationError, ErrInsufficientFunds) {
		call, operationError = service.recordRejectedSettlement(ctx, input, coinsDeducted)
	}
	callRef := input.CallID
	service.logOperation(ctx, OperationLog{
		Operation: operationSettle,
		UserID:    input.PayerUserID,
		CallID:    &callRef,
		Amount:    coinsDeducted,
		Error:     operationError,
	})
	if operationError != nil {
		return Call{}, operationError
	}
	return call, nil
}

func (service *Service) settleOnce(ctx context.Context, input CallInput, coinsDeducted int64) (Call, error) {
	var call Call
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payer, err := transactionStore.GetOrCreateAccount(ctx, input.PayerUserID)
		if err != nil {
			return err
		}
		earner, err := transactionStore.GetOrCreateAccount(ctx, input.EarnerUserID)
		if err != nil {
			return err
		}
		call = Call{
			CallID:          input.CallID,
			PayerAccountID:  payer.AccountID,
			EarnerAccountID: earner.AccountID,
			DurationSeconds: input.DurationSeconds,
			PricePerMinute:  input.PricePerMinute,
			CoinsDeducted:   coinsDeducted,
			CoinsEarned:     coinsDeducted,
			RefundStatus:    RefundStatusNone,
			CreatedUnixUTC:  service.nowFn(),
		}
		// Claiming the call id first makes retried call-end events idempotent.
		if err := transactionStore.CreateCall(ctx, call); err != nil {
			return err
		}
		if coinsDeducted == 0 {
			return nil
		}
		amount, err := NewCoins(coinsDeducted)
		if err != nil {
			return err
		}
		debit, err := NewTransactionInput(
			payer.AccountID,
			TransactionDebit,
			amount,
			SourceCallSpend,
			input.CallID.String(),
			TransactionCompleted,
			"Call charge",
		)
		if err != nil {
			return err
		}
		if _, _, err := service.postTransaction(ctx, transactionStore, debit); err != nil {
			return err
		}
		credit, err := NewTransactionInput(
			earner.AccountID,
			TransactionCredit,
			amount,
			SourceCallEarning,
			input.CallID.String(),
			TransactionCompleted,
			"Call earning",
		)
		if err != nil {
			return err
		}
		_, _, err = service.postTransaction(ctx, transactionStore, credit)
		return err
	})
	if err != nil {
		return Call{}, err
	}
	return call, nil
}

// recordRejectedSettlement stores the call flagged for admin review together
// with a failed debit row for audit visibility. Neither balance moves.
func (service *Service) recordRejectedSettlement(ctx context.Context, input CallInput, coinsDeducted int64) (Call, error) {
	var call Call
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		payer, err := transactionStore.GetOrCreateAccount(ctx, input.PayerUserID)
		if err != nil {
			return err
		}
		earner, err := transactionStore.GetOrCreateAccount(ctx, input.EarnerUserID)
		if err != nil {
			return err
		}
		call = Call{
			CallID:           input.CallID,
			PayerAccountID:   payer.AccountID,
			EarnerAccountID:  earner.AccountID,
			DurationSeconds:  input.DurationSeconds,
			PricePerMinute:   input.PricePerMinute,
			RefundStatus:     RefundStatusNone,
			FlaggedForReview: true,
			CreatedUnixUTC:   service.nowFn(),
		}
		if err := transactionStore.CreateCall(ctx, call); err != nil {
			return err
		}
		amount, err := NewCoins(coinsDeducted)
		if err != nil {
			return err
		}
		failed, err := NewTransactionInput(
			payer.AccountID,
			TransactionDebit,
			amount,
			SourceCallSpend,
			input.CallID.String(),
			TransactionFailed,
			"Call charge rejected: insufficient funds",
		)
		if err != nil {
			return err
		}
		_, err = transactionStore.InsertTransaction(ctx, failed)
		return err
	})
	if err != nil {
		return Call{}, err
	}
	return call, ErrInsufficientFunds
}
