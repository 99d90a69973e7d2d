package coinledger

import (
	"context"
	"encoding/json"
	"fmt"
)

const ledgerHistoryLimit = 200

// Service contains the settlement-engine domain logic over a Store.
type Service struct {
	store                Store
	nowFn                func() int64
	logger               OperationLogger
	refundMaxAgeDays     int64
	largeAmountThreshold int64
	reconcileSampleSize  int
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:                store,
		nowFn:                now,
		largeAmountThreshold: defaultLargeAmountThreshold,
		reconcileSampleSize:  defaultReconcileSampleSize,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the account's current projected balance.
func (service *Service) Balance(ctx context.Context, userID UserID) (int64, error) {
	account, err := service.store.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Adjust posts a single admin adjustment: credit when amount is positive, debit
// when negative. The append and the balance update share one transaction.
func (service *Service) Adjust(ctx context.Context, userID UserID, amount int64, reason Reason, adminID string, adminEmail string) (AdjustResult, error) {
	var result AdjustResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if amount == 0 {
			return fmt.Errorf("%w: adjustment of zero", ErrInvalidAmount)
		}
		account, err := transactionStore.GetOrCreateAccount(ctx, userID)
		if err != nil {
			return err
		}
		transactionType := TransactionCredit
		magnitude := amount
		if amount < 0 {
			transactionType = TransactionDebit
			magnitude = -amount
		}
		coins, err := NewCoins(magnitude)
		if err != nil {
			return err
		}
		input, err := NewTransactionInput(
			account.AccountID,
			transactionType,
			coins,
			SourceAdminAdjustment,
			"",
			TransactionCompleted,
			fmt.Sprintf("Admin adjustment: %s", reason.String()),
		)
		if err != nil {
			return err
		}
		transactionID, newBalance, err := service.postTransaction(ctx, transactionStore, input)
		if err != nil {
			return err
		}
		result = AdjustResult{
			TransactionID: transactionID,
			OldBalance:    account.Balance,
			NewBalance:    newBalance,
		}
		return transactionStore.InsertAdminAction(ctx, AdminAction{
			AdminID:        adminID,
			AdminEmail:     adminEmail,
			Action:         "adjust_coins",
			TargetType:     "account",
			TargetID:       account.AccountID,
			Reason:         reason.String(),
			DetailsJSON:    marshalDetails(map[string]int64{"amount": amount, "old_balance": account.Balance, "new_balance": newBalance}),
			CreatedUnixUTC: service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAdjust,
		UserID:    userID,
		Amount:    amount,
		AdminID:   adminID,
		Error:     operationError,
	})
	if operationError != nil {
		return AdjustResult{}, operationError
	}
	return result, nil
}

// Ledger assembles the per-user audit view: transaction history, settled calls,
// and the reconciliation summary for the account.
func (service *Service) Ledger(ctx context.Context, userID UserID) (LedgerView, error) {
	account, err := service.store.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return LedgerView{}, err
	}
	transactions, err := service.store.ListTransactions(ctx, account.AccountID, true, ledgerHistoryLimit)
	if err != nil {
		return LedgerView{}, err
	}
	calls, err := service.store.ListCallsForAccount(ctx, account.AccountID, ledgerHistoryLimit)
	if err != nil {
		return LedgerView{}, err
	}
	summary, err := service.CheckAccount(ctx, account.AccountID)
	if err != nil {
		return LedgerView{}, err
	}
	return LedgerView{
		Account:      account,
		Transactions: transactions,
		Calls:        calls,
		Summary:      summary,
	}, nil
}

// postTransaction is the single write path for balances: it applies the delta
// to the projection and appends the log row inside the caller's transaction.
// The projection update runs first so a conditional-balance failure aborts
// before any row is written.
func (service *Service) postTransaction(ctx context.Context, transactionStore Store, input TransactionInput) (string, int64, error) {
	delta := input.Amount.Int64()
	if input.Type == TransactionDebit {
		delta = -delta
	}
	newBalance, err := transactionStore.AdjustBalance(ctx, input.AccountID, delta)
	if err != nil {
		return "", 0, err
	}
	transactionID, err := transactionStore.InsertTransaction(ctx, input)
	if err != nil {
		return "", 0, err
	}
	return transactionID, newBalance, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func marshalDetails(details any) string {
	raw, err := json.Marshal(details)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
