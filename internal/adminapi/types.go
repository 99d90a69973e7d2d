package adminapi

import (
	"github.com/lumicall/coinledger/pkg/coinledger"
)

type settleRequest struct {
	CallID          string `json:"callId"`
	PayerUserID     string `json:"payerUserId"`
	EarnerUserID    string `json:"earnerUserId"`
	DurationSeconds int64  `json:"durationSeconds"`
	PricePerMinute  int64  `json:"pricePerMinute"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type adjustRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type accountPayload struct {
	AccountID      string `json:"accountId"`
	UserID         string `json:"userId"`
	Balance        int64  `json:"balance"`
	Disabled       bool   `json:"disabled"`
	CreatedUnixUTC int64  `json:"createdAt"`
}

type transactionPayload struct {
	TransactionID  string `json:"id"`
	AccountID      string `json:"accountId"`
	Type           string `json:"type"`
	Amount         int64  `json:"amount"`
	Source         string `json:"source"`
	RelatedCallID  string `json:"relatedCallId,omitempty"`
	Status         string `json:"status"`
	Description    string `json:"description"`
	CreatedUnixUTC int64  `json:"createdAt"`
}

type callPayload struct {
	CallID          string `json:"id"`
	PayerAccountID  string `json:"payerAccountId"`
	EarnerAccountID string `json:"earnerAccountId"`
	DurationSeconds int64  `json:"durationSeconds"`
	PricePerMinute  int64  `json:"pricePerMinute"`
	CoinsDeducted   int64  `json:"coinsDeducted"`
	CoinsEarned     int64  `json:"coinsEarned"`
	RefundStatus    string `json:"refundStatus"`
	IsZeroDuration  bool   `json:"isZeroDuration"`
	IsVeryShort     bool   `json:"isVeryShort"`
	IsSuspicious    bool   `json:"isSuspicious"`
	IsRefunded      bool   `json:"isRefunded"`
	CreatedUnixUTC  int64  `json:"createdAt"`
}

type paginationPayload struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type callPagePayload struct {
	Calls      []callPayload     `json:"calls"`
	Pagination paginationPayload `json:"pagination"`
}

type dailyFlowPayload struct {
	Date        string `json:"date"`
	Credited    int64  `json:"credited"`
	Debited     int64  `json:"debited"`
	CreditCount int64  `json:"creditCount"`
	DebitCount  int64  `json:"debitCount"`
}

type topActorPayload struct {
	AccountID        string `json:"accountId"`
	UserID           string `json:"userId"`
	Total            int64  `json:"total"`
	TransactionCount int64  `json:"transactionCount"`
}

type economyPayload struct {
	TotalInCirculation      int64                `json:"totalInCirculation"`
	AllTimeMinted           int64                `json:"allTimeMinted"`
	AllTimeMintedCount      int64                `json:"allTimeMintedCount"`
	AllTimeBurned           int64                `json:"allTimeBurned"`
	AllTimeBurnedCount      int64                `json:"allTimeBurnedCount"`
	DailyFlow               []dailyFlowPayload   `json:"dailyFlow"`
	TopSpenders             []topActorPayload    `json:"topSpenders"`
	TopEarners              []topActorPayload    `json:"topEarners"`
	RecentLargeTransactions []transactionPayload `json:"recentLargeTransactions"`
	FailedTransactions      []transactionPayload `json:"failedTransactions"`
}

type callFactsPayload struct {
	DurationSeconds int64 `json:"durationSeconds"`
	CoinsDeducted   int64 `json:"coinsDeducted"`
	AgeDays         int64 `json:"ageDays"`
	CreatedUnixUTC  int64 `json:"createdAt"`
}

type balanceImpactPayload struct {
	AccountID      string `json:"accountId"`
	CurrentBalance int64  `json:"currentBalance"`
	AfterRefund    int64  `json:"afterRefund"`
}

type clawbackImpactPayload struct {
	AccountID      string `json:"accountId"`
	CurrentBalance int64  `json:"currentBalance"`
	ClawbackAmount int64  `json:"clawbackAmount"`
	AfterClawback  int64  `json:"afterClawback"`
}

type refundPreviewPayload struct {
	CallID        string                 `json:"callId"`
	CanRefund     bool                   `json:"canRefund"`
	BlockReason   string                 `json:"blockReason,omitempty"`
	Call          callFactsPayload       `json:"call"`
	UserImpact    *balanceImpactPayload  `json:"userImpact"`
	CreatorImpact *clawbackImpactPayload `json:"creatorImpact"`
}

type clawbackResultPayload struct {
	CreatorAccountID string `json:"creatorAccountId"`
	BalanceBefore    int64  `json:"balanceBefore"`
	BalanceAfter     int64  `json:"balanceAfter"`
}

type refundResultPayload struct {
	CallID            string                 `json:"callId"`
	RefundedAmount    int64                  `json:"refundedAmount"`
	UserBalanceBefore int64                  `json:"userBalanceBefore"`
	UserBalanceAfter  int64                  `json:"userBalanceAfter"`
	CreatorClawback   *clawbackResultPayload `json:"creatorClawback"`
}

type adjustResultPayload struct {
	TransactionID string `json:"transactionId"`
	OldBalance    int64  `json:"oldBalance"`
	NewBalance    int64  `json:"newBalance"`
}

type ledgerSummaryPayload struct {
	TotalCredited   int64 `json:"totalCredited"`
	TotalDebited    int64 `json:"totalDebited"`
	ExpectedBalance int64 `json:"expectedBalance"`
	ActualBalance   int64 `json:"actualBalance"`
	Discrepancy     int64 `json:"discrepancy"`
}

type ledgerPayload struct {
	Account      accountPayload       `json:"account"`
	Transactions []transactionPayload `json:"transactions"`
	Calls        []callPayload        `json:"calls"`
	Summary      ledgerSummaryPayload `json:"summary"`
}

type adminActionPayload struct {
	ActionID       string `json:"id"`
	AdminID        string `json:"adminId"`
	AdminEmail     string `json:"adminEmail"`
	Action         string `json:"action"`
	TargetType     string `json:"targetType"`
	TargetID       string `json:"targetId"`
	Reason         string `json:"reason,omitempty"`
	DetailsJSON    string `json:"details,omitempty"`
	CreatedUnixUTC int64  `json:"createdAt"`
}

type actionPagePayload struct {
	Actions    []adminActionPayload `json:"actions"`
	Pagination paginationPayload    `json:"pagination"`
}

type databaseHealthPayload struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

type reconciliationHealthPayload struct {
	Drift           int64 `json:"drift"`
	SampledAccounts int   `json:"sampledAccounts"`
	DriftedAccounts int   `json:"driftedAccounts"`
	Healthy         bool  `json:"healthy"`
}

type countersPayload struct {
	FailedTransactionsLastHour int64 `json:"failedTransactionsLastHour"`
	NegativeBalanceAccounts    int64 `json:"negativeBalanceAccounts"`
}

type healthPayload struct {
	Status            string                      `json:"status"`
	Database          databaseHealthPayload       `json:"database"`
	Counters          countersPayload             `json:"counters"`
	Reconciliation    reconciliationHealthPayload `json:"reconciliation"`
	ServerTimeUnixUTC int64                       `json:"serverTime"`
	UptimeSeconds     int64                       `json:"uptimeSeconds"`
}

func mapAccountPayload(account coinledger.Account) accountPayload {
	return accountPayload{
		AccountID:      account.AccountID,
		UserID:         account.UserID.String(),
		Balance:        account.Balance,
		Disabled:       account.Disabled,
		CreatedUnixUTC: account.CreatedUnixUTC,
	}
}

func mapTransactionPayload(transaction coinledger.Transaction) transactionPayload {
	return transactionPayload{
		TransactionID:  transaction.TransactionID,
		AccountID:      transaction.AccountID,
		Type:           transaction.Type.String(),
		Amount:         transaction.Amount.Int64(),
		Source:         transaction.Source.String(),
		RelatedCallID:  transaction.RelatedCallID,
		Status:         transaction.Status.String(),
		Description:    transaction.Description,
		CreatedUnixUTC: transaction.CreatedUnixUTC,
	}
}

func mapTransactionPayloads(transactions []coinledger.Transaction) []transactionPayload {
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, mapTransactionPayload(transaction))
	}
	return payloads
}

func mapCallPayload(call coinledger.Call) callPayload {
	return callPayload{
		CallID:          call.CallID.String(),
		PayerAccountID:  call.PayerAccountID,
		EarnerAccountID: call.EarnerAccountID,
		DurationSeconds: call.DurationSeconds,
		PricePerMinute:  call.PricePerMinute,
		CoinsDeducted:   call.CoinsDeducted,
		CoinsEarned:     call.CoinsEarned,
		RefundStatus:    call.RefundStatus.String(),
		IsZeroDuration:  call.IsZeroDuration(),
		IsVeryShort:     call.IsVeryShort(),
		IsSuspicious:    call.FlaggedForReview,
		IsRefunded:      call.IsRefunded(),
		CreatedUnixUTC:  call.CreatedUnixUTC,
	}
}

func mapCallPayloads(calls []coinledger.Call) []callPayload {
	payloads := make([]callPayload, 0, len(calls))
	for _, call := range calls {
		payloads = append(payloads, mapCallPayload(call))
	}
	return payloads
}

func mapDailyFlowPayloads(flows []coinledger.DailyFlow) []dailyFlowPayload {
	payloads := make([]dailyFlowPayload, 0, len(flows))
	for _, flow := range flows {
		payloads = append(payloads, dailyFlowPayload{
			Date:        flow.Date,
			Credited:    flow.Credited,
			Debited:     flow.Debited,
			CreditCount: flow.CreditCount,
			DebitCount:  flow.DebitCount,
		})
	}
	return payloads
}

func mapTopActorPayloads(actors []coinledger.TopActor) []topActorPayload {
	payloads := make([]topActorPayload, 0, len(actors))
	for _, actor := range actors {
		payloads = append(payloads, topActorPayload{
			AccountID:        actor.AccountID,
			UserID:           actor.UserID,
			Total:            actor.Total,
			TransactionCount: actor.TransactionCount,
		})
	}
	return payloads
}

func mapEconomyPayload(economy coinledger.Economy) economyPayload {
	return economyPayload{
		TotalInCirculation:      economy.TotalInCirculation,
		AllTimeMinted:           economy.AllTimeMinted,
		AllTimeMintedCount:      economy.AllTimeMintedCount,
		AllTimeBurned:           economy.AllTimeBurned,
		AllTimeBurnedCount:      economy.AllTimeBurnedCount,
		DailyFlow:               mapDailyFlowPayloads(economy.DailyFlow),
		TopSpenders:             mapTopActorPayloads(economy.TopSpenders),
		TopEarners:              mapTopActorPayloads(economy.TopEarners),
		RecentLargeTransactions: mapTransactionPayloads(economy.RecentLargeTransactions),
		FailedTransactions:      mapTransactionPayloads(economy.FailedTransactions),
	}
}

func mapRefundPreviewPayload(preview coinledger.RefundPreview) refundPreviewPayload {
	payload := refundPreviewPayload{
		CallID:      preview.CallID.String(),
		CanRefund:   preview.CanRefund,
		BlockReason: preview.BlockReason,
		Call: callFactsPayload{
			DurationSeconds: preview.Call.DurationSeconds,
			CoinsDeducted:   preview.Call.CoinsDeducted,
			AgeDays:         preview.Call.AgeDays,
			CreatedUnixUTC:  preview.Call.CreatedUnixUTC,
		},
	}
	if preview.UserImpact != nil {
		payload.UserImpact = &balanceImpactPayload{
			AccountID:      preview.UserImpact.AccountID,
			CurrentBalance: preview.UserImpact.CurrentBalance,
			AfterRefund:    preview.UserImpact.AfterRefund,
		}
	}
	if preview.CreatorImpact != nil {
		payload.CreatorImpact = &clawbackImpactPayload{
			AccountID:      preview.CreatorImpact.AccountID,
			CurrentBalance: preview.CreatorImpact.CurrentBalance,
			ClawbackAmount: preview.CreatorImpact.ClawbackAmount,
			AfterClawback:  preview.CreatorImpact.AfterClawback,
		}
	}
	return payload
}

func mapRefundResultPayload(result coinledger.RefundResult) refundResultPayload {
	payload := refundResultPayload{
		CallID:            result.CallID.String(),
		RefundedAmount:    result.RefundedAmount,
		UserBalanceBefore: result.UserBalanceBefore,
		UserBalanceAfter:  result.UserBalanceAfter,
	}
	if result.CreatorClawback != nil {
		payload.CreatorClawback = &clawbackResultPayload{
			CreatorAccountID: result.CreatorClawback.EarnerAccountID,
			BalanceBefore:    result.CreatorClawback.BalanceBefore,
			BalanceAfter:     result.CreatorClawback.BalanceAfter,
		}
	}
	return payload
}

func mapLedgerPayload(view coinledger.LedgerView) ledgerPayload {
	return ledgerPayload{
		Account:      mapAccountPayload(view.Account),
		Transactions: mapTransactionPayloads(view.Transactions),
		Calls:        mapCallPayloads(view.Calls),
		Summary: ledgerSummaryPayload{
			TotalCredited:   view.Summary.TotalCredited,
			TotalDebited:    view.Summary.TotalDebited,
			ExpectedBalance: view.Summary.ExpectedBalance,
			ActualBalance:   view.Summary.ActualBalance,
			Discrepancy:     view.Summary.Discrepancy,
		},
	}
}

func mapAdminActionPayloads(actions []coinledger.AdminAction) []adminActionPayload {
	payloads := make([]adminActionPayload, 0, len(actions))
	for _, action := range actions {
		payloads = append(payloads, adminActionPayload{
			ActionID:       action.ActionID,
			AdminID:        action.AdminID,
			AdminEmail:     action.AdminEmail,
			Action:         action.Action,
			TargetType:     action.TargetType,
			TargetID:       action.TargetID,
			Reason:         action.Reason,
			DetailsJSON:    action.DetailsJSON,
			CreatedUnixUTC: action.CreatedUnixUTC,
		})
	}
	return payloads
}
