package coinledger

import "context"

// Store is the persistence contract used by Service. Implementations must make
// every mutation issued inside WithTx atomic: a transaction row and its balance
// projection either both commit or both roll back.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetOrCreateAccount(ctx context.Context, userID UserID) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	// GetAccountForUpdate row-locks the account for the duration of the
	// enclosing transaction.
	GetAccountForUpdate(ctx context.Context, accountID string) (Account, error)
	// AdjustBalance applies a signed delta conditionally: a debit that would
	// drive the balance negative matches zero rows and returns
	// ErrInsufficientFunds. Returns the post-update balance.
	AdjustBalance(ctx context.Context, accountID string, delta int64) (int64, error)

	InsertTransaction(ctx context.Context, input TransactionInput) (string, error)
	// ListTransactions returns the account's transactions, newest-first when
	// newestFirst is set, oldest-first otherwise. Limit 0 means no limit.
	ListTransactions(ctx context.Context, accountID string, newestFirst bool, limit int) ([]Transaction, error)
	// SumCompleted returns the completed credit and debit sums for the account.
	SumCompleted(ctx context.Context, accountID string) (int64, int64, error)

	// CreateCall persists a settled call; a duplicate call id returns
	// ErrCallAlreadySettled.
	CreateCall(ctx context.Context, call Call) error
	GetCall(ctx context.Context, callID CallID) (Call, error)
	GetCallForUpdate(ctx context.Context, callID CallID) (Call, error)
	// MarkCallRefunded flips refund status none -> refunded; zero rows affected
	// returns ErrAlreadyRefunded.
	MarkCallRefunded(ctx context.Context, callID CallID) error
	ListCalls(ctx context.Context, page Page, anomaliesOnly bool) ([]Call, int64, error)
	ListCallsForAccount(ctx context.Context, accountID string, limit int) ([]Call, error)

	CreateRefundRecord(ctx context.Context, record RefundRecord) error
	InsertAdminAction(ctx context.Context, action AdminAction) error
	ListAdminActions(ctx context.Context, page Page) ([]AdminAction, int64, error)

	SumAllBalances(ctx context.Context) (int64, error)
	AggregateCompleted(ctx context.Context) (MintBurn, error)
	DailyFlow(ctx context.Context, days int) ([]DailyFlow, error)
	TopAccountsBySource(ctx context.Context, source TransactionSource, limit int) ([]TopActor, error)
	ListLargeTransactions(ctx context.Context, threshold int64, limit int) ([]Transaction, error)
	ListFailedTransactions(ctx context.Context, limit int) ([]Transaction, error)
	SampleAccountIDs(ctx context.Context, limit int) ([]string, error)
	CountNegativeBalances(ctx context.Context) (int64, error)
	CountFailedTransactionsSince(ctx context.Context, sinceUnixUTC int64) (int64, error)
}
