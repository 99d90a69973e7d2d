package coinledger

import (
	"fmt"
	"strings"
)

// Coins is an integral coin amount; the platform has no fractional units.
type Coins int64

// NewCoins validates a transaction amount and ensures it is strictly positive.
func NewCoins(raw int64) (Coins, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Coins(raw), nil
}

// Int64 returns the raw amount.
func (amount Coins) Int64() int64 {
	return int64(amount)
}

// UserID identifies an account owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// CallID identifies a settled call.
type CallID struct {
	value string
}

// NewCallID validates and normalizes a call id.
func NewCallID(raw string) (CallID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CallID{}, fmt.Errorf("%w: empty value", ErrInvalidCallID)
	}
	return CallID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CallID) String() string {
	return id.value
}

// Reason is a non-empty audit note attached to refunds and adjustments.
type Reason struct {
	value string
}

// NewReason validates and normalizes an audit reason.
func NewReason(raw string) (Reason, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reason{}, fmt.Errorf("%w: empty value", ErrInvalidReason)
	}
	return Reason{value: trimmed}, nil
}

// String returns the normalized reason.
func (reason Reason) String() string {
	return reason.value
}

// TransactionType enumerates the two ledger directions.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// ParseTransactionType validates a stored transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionCredit, TransactionDebit:
		return TransactionType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
}

// String returns the stored representation.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// TransactionSource enumerates the economic events that produce transactions.
type TransactionSource string

const (
	SourceCallEarning     TransactionSource = "call_earning"
	SourceCallSpend       TransactionSource = "call_spend"
	SourceRefund          TransactionSource = "refund"
	SourceClawback        TransactionSource = "clawback"
	SourceAdminAdjustment TransactionSource = "admin_adjustment"
	SourcePurchase        TransactionSource = "purchase"
	SourceBonus           TransactionSource = "bonus"
)

// ParseTransactionSource validates a stored transaction source.
func ParseTransactionSource(raw string) (TransactionSource, error) {
	switch TransactionSource(raw) {
	case SourceCallEarning, SourceCallSpend, SourceRefund, SourceClawback,
		SourceAdminAdjustment, SourcePurchase, SourceBonus:
		return TransactionSource(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionSource, raw)
}

// String returns the stored representation.
func (source TransactionSource) String() string {
	return string(source)
}

// TransactionStatus marks whether a transaction affected balances.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// ParseTransactionStatus validates a stored transaction status.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	switch TransactionStatus(raw) {
	case TransactionCompleted, TransactionFailed:
		return TransactionStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionStatus, raw)
}

// String returns the stored representation.
func (status TransactionStatus) String() string {
	return string(status)
}

// RefundStatus tracks the one-way none -> refunded transition of a call.
type RefundStatus string

const (
	RefundStatusNone     RefundStatus = "none"
	RefundStatusRefunded RefundStatus = "refunded"
)

// ParseRefundStatus validates a stored refund status.
func ParseRefundStatus(raw string) (RefundStatus, error) {
	switch RefundStatus(raw) {
	case RefundStatusNone, RefundStatusRefunded:
		return RefundStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRefundStatus, raw)
}

// String returns the stored representation.
func (status RefundStatus) String() string {
	return string(status)
}

// Account holds the materialized balance projection for one user.
type Account struct {
	AccountID      string
	UserID         UserID
	Balance        int64
	Disabled       bool
	CreatedUnixUTC int64
}

// A single immutable line in the transaction log.
type Transaction struct {
	TransactionID  string
	AccountID      string
	Type           TransactionType
	Amount         Coins
	Source         TransactionSource
	RelatedCallID  string
	Status         TransactionStatus
	Description    string
	CreatedUnixUTC int64
}

// TransactionInput carries the fields the log assigns an id and timestamp to.
type TransactionInput struct {
	AccountID     string
	Type          TransactionType
	Amount        Coins
	Source        TransactionSource
	RelatedCallID string
	Status        TransactionStatus
	Description   string
}

// NewTransactionInput validates a log append before it reaches the store.
func NewTransactionInput(accountID string, transactionType TransactionType, amount Coins, source TransactionSource, relatedCallID string, status TransactionStatus, description string) (TransactionInput, error) {
	if strings.TrimSpace(accountID) == "" {
		return TransactionInput{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	if amount <= 0 {
		return TransactionInput{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if _, err := ParseTransactionType(transactionType.String()); err != nil {
		return TransactionInput{}, err
	}
	if _, err := ParseTransactionSource(source.String()); err != nil {
		return TransactionInput{}, err
	}
	if _, err := ParseTransactionStatus(status.String()); err != nil {
		return TransactionInput{}, err
	}
	return TransactionInput{
		AccountID:     accountID,
		Type:          transactionType,
		Amount:        amount,
		Source:        source,
		RelatedCallID: relatedCallID,
		Status:        status,
		Description:   description,
	}, nil
}

// Call records one settled voice/video session.
type Call struct {
	CallID           CallID
	PayerAccountID   string
	EarnerAccountID  string
	DurationSeconds  int64
	PricePerMinute   int64
	CoinsDeducted    int64
	CoinsEarned      int64
	RefundStatus     RefundStatus
	FlaggedForReview bool
	CreatedUnixUTC   int64
}

// IsZeroDuration reports a call that connected but lasted zero seconds.
func (call Call) IsZeroDuration() bool {
	return call.DurationSeconds == 0
}

// IsVeryShort reports a call under the anomaly display threshold.
func (call Call) IsVeryShort() bool {
	return call.DurationSeconds > 0 && call.DurationSeconds < veryShortCallSeconds
}

// IsRefunded reports whether the call reached its terminal refund state.
func (call Call) IsRefunded() bool {
	return call.RefundStatus == RefundStatusRefunded
}

// CallInput describes a call-end event handed to settlement.
type CallInput struct {
	CallID          CallID
	PayerUserID     UserID
	EarnerUserID    UserID
	DurationSeconds int64
	PricePerMinute  int64
}

// NewCallInput validates a call-end event.
func NewCallInput(callID CallID, payerUserID UserID, earnerUserID UserID, durationSeconds int64, pricePerMinute int64) (CallInput, error) {
	if callID.String() == "" {
		return CallInput{}, fmt.Errorf("%w: empty value", ErrInvalidCallID)
	}
	if payerUserID.String() == "" || earnerUserID.String() == "" {
		return CallInput{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if payerUserID == earnerUserID {
		return CallInput{}, fmt.Errorf("%w: payer and earner are the same user", ErrInvalidUserID)
	}
	if durationSeconds < 0 {
		return CallInput{}, fmt.Errorf("%w: negative duration", ErrInvalidCallInput)
	}
	if pricePerMinute < 0 {
		return CallInput{}, fmt.Errorf("%w: negative price", ErrInvalidCallInput)
	}
	return CallInput{
		CallID:          callID,
		PayerUserID:     payerUserID,
		EarnerUserID:    earnerUserID,
		DurationSeconds: durationSeconds,
		PricePerMinute:  pricePerMinute,
	}, nil
}

// ClawbackRecord captures a creator-side reversal that actually applied.
type ClawbackRecord struct {
	EarnerAccountID string
	BalanceBefore   int64
	BalanceAfter    int64
}

// RefundRecord is the immutable audit row created by a successful refund.
type RefundRecord struct {
	CallID             CallID
	AmountRefunded     int64
	PayerAccountID     string
	PayerBalanceBefore int64
	PayerBalanceAfter  int64
	Clawback           *ClawbackRecord
	Reason             Reason
	AdminID            string
	CreatedUnixUTC     int64
}

// RefundResult is returned by a successful refund execution.
type RefundResult struct {
	CallID            CallID
	RefundedAmount    int64
	UserBalanceBefore int64
	UserBalanceAfter  int64
	CreatorClawback   *ClawbackRecord
}

// CallFacts summarizes the call inside a refund preview.
type CallFacts struct {
	DurationSeconds int64
	CoinsDeducted   int64
	AgeDays         int64
	CreatedUnixUTC  int64
}

// BalanceImpact projects the payer-side effect of a refund.
type BalanceImpact struct {
	AccountID      string
	CurrentBalance int64
	AfterRefund    int64
}

// ClawbackImpact projects the creator-side effect of a refund.
type ClawbackImpact struct {
	AccountID      string
	CurrentBalance int64
	ClawbackAmount int64
	AfterClawback  int64
}

// RefundPreview is the read-only eligibility report for one call.
type RefundPreview struct {
	CallID        CallID
	CanRefund     bool
	BlockReason   string
	Call          CallFacts
	UserImpact    *BalanceImpact
	CreatorImpact *ClawbackImpact
}

// AdjustResult reports the balance movement of an admin adjustment.
type AdjustResult struct {
	TransactionID string
	OldBalance    int64
	NewBalance    int64
}

// AccountCheck is the per-account reconciliation verdict.
type AccountCheck struct {
	AccountID       string
	TotalCredited   int64
	TotalDebited    int64
	ExpectedBalance int64
	ActualBalance   int64
	Discrepancy     int64
}

// Healthy reports whether the projection matches the replayed log.
func (check AccountCheck) Healthy() bool {
	return check.Discrepancy == 0
}

// GlobalCheck is the platform-wide reconciliation verdict.
type GlobalCheck struct {
	TotalInCirculation int64
	AllTimeMinted      int64
	AllTimeBurned      int64
	Drift              int64
	SampledAccounts    []AccountCheck
	DriftedAccounts    int
}

// Healthy reports whether circulation equals minted minus burned.
func (check GlobalCheck) Healthy() bool {
	return check.Drift == 0
}

// LedgerView is the full per-user audit screen.
type LedgerView struct {
	Account      Account
	Transactions []Transaction
	Calls        []Call
	Summary      AccountCheck
}

// DailyFlow aggregates one day of credits and debits.
type DailyFlow struct {
	Date        string
	Credited    int64
	Debited     int64
	CreditCount int64
	DebitCount  int64
}

// TopActor ranks an account by total completed flow for one source.
type TopActor struct {
	AccountID        string
	UserID           string
	Total            int64
	TransactionCount int64
}

// MintBurn holds the exact all-time aggregates over completed transactions.
type MintBurn struct {
	Minted      int64
	MintedCount int64
	Burned      int64
	BurnedCount int64
}

// Economy is the coin-economy summary consumed by the dashboard.
type Economy struct {
	TotalInCirculation      int64
	AllTimeMinted           int64
	AllTimeMintedCount      int64
	AllTimeBurned           int64
	AllTimeBurnedCount      int64
	DailyFlow               []DailyFlow
	TopSpenders             []TopActor
	TopEarners              []TopActor
	RecentLargeTransactions []Transaction
	FailedTransactions      []Transaction
}

// AdminAction is one append-only audit log row.
type AdminAction struct {
	ActionID       string
	AdminID        string
	AdminEmail     string
	Action         string
	TargetType     string
	TargetID       string
	Reason         string
	DetailsJSON    string
	CreatedUnixUTC int64
}

// Page describes an offset/limit window over a listing.
type Page struct {
	Number int
	Limit  int
}

// Offset converts the page window into a row offset.
func (page Page) Offset() int {
	if page.Number <= 1 {
		return 0
	}
	return (page.Number - 1) * page.Limit
}

// CallPage is one page of settled calls with the total row count.
type CallPage struct {
	Calls      []Call
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
}

// ActionPage is one page of admin audit rows with the total row count.
type ActionPage struct {
	Actions    []AdminAction
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
}

// PlatformCounters feeds the system-health display.
type PlatformCounters struct {
	FailedTransactionsLastHour int64
	NegativeBalanceAccounts    int64
}
