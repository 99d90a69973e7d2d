package coinledger

import (
	"context"
	"fmt"
)

// PreviewRefund reports eligibility and the exact balance deltas a refund would
// apply, without mutating anything. Identical inputs produce identical results
// until the underlying state changes.
func (service *Service) PreviewRefund(ctx context.Context, callID CallID) (RefundPreview, error) {
	call, err := service.store.GetCall(ctx, callID)
	if err != nil {
		return RefundPreview{}, err
	}
	preview := RefundPreview{
		CallID: callID,
		Call: CallFacts{
			DurationSeconds: call.DurationSeconds,
			CoinsDeducted:   call.CoinsDeducted,
			AgeDays:         service.callAgeDays(call),
			CreatedUnixUTC:  call.CreatedUnixUTC,
		},
	}
	if blockReason := service.refundBlockReason(call); blockReason != "" {
		preview.BlockReason = blockReason
		return preview, nil
	}
	payer, err := service.store.GetAccount(ctx, call.PayerAccountID)
	if err != nil {
		return RefundPreview{}, err
	}
	earner, err := service.store.GetAccount(ctx, call.EarnerAccountID)
	if err != nil {
		return RefundPreview{}, err
	}
	preview.CanRefund = true
	preview.UserImpact = &BalanceImpact{
		AccountID:      payer.AccountID,
		CurrentBalance: payer.Balance,
		AfterRefund:    payer.Balance + call.CoinsDeducted,
	}
	creatorImpact := &ClawbackImpact{
		AccountID:      earner.AccountID,
		CurrentBalance: earner.Balance,
	}
	if earner.Balance >= call.CoinsDeducted {
		creatorImpact.ClawbackAmount = call.CoinsDeducted
		creatorImpact.AfterClawback = earner.Balance - call.CoinsDeducted
	} else {
		// Clawback would be skipped: the creator keeps their balance.
		creatorImpact.AfterClawback = earner.Balance
	}
	preview.CreatorImpact = creatorImpact
	return preview, nil
}

// Refund reverses a call's settlement. The payer is always credited in full;
// the creator clawback applies only when it would not drive their balance
// negative, and is skipped entirely otherwise. Eligibility is re-checked inside
// the same transaction as the mutation, so a concurrent refund of the same call
// loses with ErrAlreadyRefunded.
func (service *Service) Refund(ctx context.Context, callID CallID, reason Reason, adminID string, adminEmail string) (RefundResult, error) {
	var result RefundResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		call, err := transactionStore.GetCallForUpdate(ctx, callID)
		if err != nil {
			return err
		}
		switch blockReason := service.refundBlockReason(call); blockReason {
		case "":
		case blockReasonAlreadyRefunded:
			return ErrAlreadyRefunded
		default:
			return fmt.Errorf("%w: %s", ErrCallNotRefundable, blockReason)
		}
		// The conditional flip is the at-most-once guard; it precedes the
		// credits so no balance can move for a call that lost the race.
		if err := transactionStore.MarkCallRefunded(ctx, callID); err != nil {
			return err
		}
		amount, err := NewCoins(call.CoinsDeducted)
		if err != nil {
			return err
		}
		payer, err := transactionStore.GetAccountForUpdate(ctx, call.PayerAccountID)
		if err != nil {
			return err
		}
		credit, err := NewTransactionInput(
			payer.AccountID,
			TransactionCredit,
			amount,
			SourceRefund,
			callID.String(),
			TransactionCompleted,
			fmt.Sprintf("Refund for call: %s", reason.String()),
		)
		if err != nil {
			return err
		}
		if _, _, err := service.postTransaction(ctx, transactionStore, credit); err != nil {
			return err
		}
		record := RefundRecord{
			CallID:             callID,
			AmountRefunded:     call.CoinsDeducted,
			PayerAccountID:     payer.AccountID,
			PayerBalanceBefore: payer.Balance,
			PayerBalanceAfter:  payer.Balance + call.CoinsDeducted,
			Reason:             reason,
			AdminID:            adminID,
			CreatedUnixUTC:     service.nowFn(),
		}
		earner, err := transactionStore.GetAccountForUpdate(ctx, call.EarnerAccountID)
		if err != nil {
			return err
		}
		if earner.Balance >= call.CoinsDeducted {
			clawback, err := NewTransactionInput(
				earner.AccountID,
				TransactionDebit,
				amount,
				SourceClawback,
				callID.String(),
				TransactionCompleted,
				fmt.Sprintf("Earnings clawback for refunded call: %s", reason.String()),
			)
			if err != nil {
				return err
			}
			if _, _, err := service.postTransaction(ctx, transactionStore, clawback); err != nil {
				return err
			}
			record.Clawback = &ClawbackRecord{
				EarnerAccountID: earner.AccountID,
				BalanceBefore:   earner.Balance,
				BalanceAfter:    earner.Balance - call.CoinsDeducted,
			}
		}
		if err := transactionStore.CreateRefundRecord(ctx, record); err != nil {
			return err
		}
		if err := transactionStore.InsertAdminAction(ctx, AdminAction{
			AdminID:        adminID,
			AdminEmail:     adminEmail,
			Action:         "refund_call",
			TargetType:     "call",
			TargetID:       callID.String(),
			Reason:         reason.String(),
			DetailsJSON:    marshalDetails(map[string]any{"refunded_amount": call.CoinsDeducted, "clawback_applied": record.Clawback != nil}),
			CreatedUnixUTC: service.nowFn(),
		}); err != nil {
			return err
		}
		result = RefundResult{
			CallID:            callID,
			RefundedAmount:    record.AmountRefunded,
			UserBalanceBefore: record.PayerBalanceBefore,
			UserBalanceAfter:  record.PayerBalanceAfter,
			CreatorClawback:   record.Clawback,
		}
		return nil
	})
	callRef := callID
	service.logOperation(ctx, OperationLog{
		Operation: operationRefund,
		CallID:    &callRef,
		Amount:    result.RefundedAmount,
		AdminID:   adminID,
		Error:     operationError,
	})
	if operationError != nil {
		return RefundResult{}, operationError
	}
	return result, nil
}

func (service *Service) refundBlockReason(call Call) string {
	if call.CoinsDeducted <= 0 {
		return blockReasonZeroSpend
	}
	if call.RefundStatus == RefundStatusRefunded {
		return blockReasonAlreadyRefunded
	}
	if service.refundMaxAgeDays > 0 && service.callAgeDays(call) > service.refundMaxAgeDays {
		return blockReasonTooOld
	}
	return ""
}

func (service *Service) callAgeDays(call Call) int64 {
	ageSeconds := service.nowFn() - call.CreatedUnixUTC
	if ageSeconds < 0 {
		return 0
	}
	return ageSeconds / secondsPerDay
}
