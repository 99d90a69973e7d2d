package coinledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// stubBaseUnixUTC matches the fixed clock handed to mustNewService so that
// time-window queries line up with stub row timestamps.
const stubBaseUnixUTC = int64(1_000_000)

// stubStore is an in-memory Store used by the service tests. WithTx snapshots
// the state and restores it when fn fails, matching the all-or-nothing
// contract of the real store.
type stubStore struct {
	mu             sync.Mutex
	accountsByUser map[string]string
	accounts       map[string]*Account
	transactions   []Transaction
	calls          map[string]*Call
	refunds        map[string]RefundRecord
	actions        []AdminAction
	sequence       int64

	insertTransactionErr error
	createRefundErr      error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		accountsByUser: map[string]string{},
		accounts:       map[string]*Account{},
		calls:          map[string]*Call{},
		refunds:        map[string]RefundRecord{},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	snapshot := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(snapshot)
		return err
	}
	return nil
}

type stubSnapshot struct {
	accountsByUser map[string]string
	accounts       map[string]*Account
	transactions   []Transaction
	calls          map[string]*Call
	refunds        map[string]RefundRecord
	actions        []AdminAction
	sequence       int64
}

func (store *stubStore) snapshot() stubSnapshot {
	accountsByUser := make(map[string]string, len(store.accountsByUser))
	for key, value := range store.accountsByUser {
		accountsByUser[key] = value
	}
	accounts := make(map[string]*Account, len(store.accounts))
	for key, value := range store.accounts {
		copied := *value
		accounts[key] = &copied
	}
	calls := make(map[string]*Call, len(store.calls))
	for key, value := range store.calls {
		copied := *value
		calls[key] = &copied
	}
	refunds := make(map[string]RefundRecord, len(store.refunds))
	for key, value := range store.refunds {
		refunds[key] = value
	}
	return stubSnapshot{
		accountsByUser: accountsByUser,
		accounts:       accounts,
		transactions:   append([]Transaction(nil), store.transactions...),
		calls:          calls,
		refunds:        refunds,
		actions:        append([]AdminAction(nil), store.actions...),
		sequence:       store.sequence,
	}
}

func (store *stubStore) restore(snapshot stubSnapshot) {
	store.accountsByUser = snapshot.accountsByUser
	store.accounts = snapshot.accounts
	store.transactions = snapshot.transactions
	store.calls = snapshot.calls
	store.refunds = snapshot.refunds
	store.actions = snapshot.actions
	store.sequence = snapshot.sequence
}

func (store *stubStore) nextSequence() int64 {
	store.sequence++
	return store.sequence
}

func (store *stubStore) GetOrCreateAccount(ctx context.Context, userID UserID) (Account, error) {
	if accountID, ok := store.accountsByUser[userID.String()]; ok {
		return *store.accounts[accountID], nil
	}
	accountID := fmt.Sprintf("acct-%d", store.nextSequence())
	account := &Account{AccountID: accountID, UserID: userID}
	store.accountsByUser[userID.String()] = accountID
	store.accounts[accountID] = account
	return *account, nil
}

func (store *stubStore) GetAccount(ctx context.Context, accountID string) (Account, error) {
	account, ok := store.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *account, nil
}

func (store *stubStore) GetAccountForUpdate(ctx context.Context, accountID string) (Account, error) {
	return store.GetAccount(ctx, accountID)
}

func (store *stubStore) AdjustBalance(ctx context.Context, accountID string, delta int64) (int64, error) {
	account, ok := store.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if account.Balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	account.Balance += delta
	return account.Balance, nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, input TransactionInput) (string, error) {
	if store.insertTransactionErr != nil {
		return "", store.insertTransactionErr
	}
	sequence := store.nextSequence()
	transaction := Transaction{
		TransactionID:  fmt.Sprintf("tx-%d", sequence),
		AccountID:      input.AccountID,
		Type:           input.Type,
		Amount:         input.Amount,
		Source:         input.Source,
		RelatedCallID:  input.RelatedCallID,
		Status:         input.Status,
		Description:    input.Description,
		CreatedUnixUTC: stubBaseUnixUTC + sequence,
	}
	store.transactions = append(store.transactions, transaction)
	return transaction.TransactionID, nil
}

func (store *stubStore) ListTransactions(ctx context.Context, accountID string, newestFirst bool, limit int) ([]Transaction, error) {
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.AccountID == accountID {
			matched = append(matched, transaction)
		}
	}
	if newestFirst {
		sort.Slice(matched, func(left, right int) bool {
			return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
		})
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) SumCompleted(ctx context.Context, accountID string) (int64, int64, error) {
	var credited, debited int64
	for _, transaction := range store.transactions {
		if transaction.AccountID != accountID || transaction.Status != TransactionCompleted {
			continue
		}
		if transaction.Type == TransactionCredit {
			credited += transaction.Amount.Int64()
		} else {
			debited += transaction.Amount.Int64()
		}
	}
	return credited, debited, nil
}

func (store *stubStore) CreateCall(ctx context.Context, call Call) error {
	if _, exists := store.calls[call.CallID.String()]; exists {
		return ErrCallAlreadySettled
	}
	copied := call
	store.calls[call.CallID.String()] = &copied
	return nil
}

func (store *stubStore) GetCall(ctx context.Context, callID CallID) (Call, error) {
	call, ok := store.calls[callID.String()]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	return *call, nil
}

func (store *stubStore) GetCallForUpdate(ctx context.Context, callID CallID) (Call, error) {
	return store.GetCall(ctx, callID)
}

func (store *stubStore) MarkCallRefunded(ctx context.Context, callID CallID) error {
	call, ok := store.calls[callID.String()]
	if !ok {
		return ErrCallNotFound
	}
	if call.RefundStatus != RefundStatusNone {
		return ErrAlreadyRefunded
	}
	call.RefundStatus = RefundStatusRefunded
	return nil
}

func (store *stubStore) ListCalls(ctx context.Context, page Page, anomaliesOnly bool) ([]Call, int64, error) {
	var matched []Call
	for _, call := range store.calls {
		if anomaliesOnly && !call.IsZeroDuration() && !call.IsVeryShort() && !call.FlaggedForReview && !call.IsRefunded() {
			continue
		}
		matched = append(matched, *call)
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	total := int64(len(matched))
	offset := page.Offset()
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, total, nil
}

func (store *stubStore) ListCallsForAccount(ctx context.Context, accountID string, limit int) ([]Call, error) {
	var matched []Call
	for _, call := range store.calls {
		if call.PayerAccountID == accountID || call.EarnerAccountID == accountID {
			matched = append(matched, *call)
		}
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) CreateRefundRecord(ctx context.Context, record RefundRecord) error {
	if store.createRefundErr != nil {
		return store.createRefundErr
	}
	store.refunds[record.CallID.String()] = record
	return nil
}

func (store *stubStore) InsertAdminAction(ctx context.Context, action AdminAction) error {
	action.ActionID = fmt.Sprintf("action-%d", store.nextSequence())
	store.actions = append(store.actions, action)
	return nil
}

func (store *stubStore) ListAdminActions(ctx context.Context, page Page) ([]AdminAction, int64, error) {
	actions := append([]AdminAction(nil), store.actions...)
	sort.Slice(actions, func(left, right int) bool {
		return actions[left].CreatedUnixUTC > actions[right].CreatedUnixUTC
	})
	total := int64(len(actions))
	offset := page.Offset()
	if offset >= len(actions) {
		return nil, total, nil
	}
	actions = actions[offset:]
	if page.Limit > 0 && len(actions) > page.Limit {
		actions = actions[:page.Limit]
	}
	return actions, total, nil
}

func (store *stubStore) SumAllBalances(ctx context.Context) (int64, error) {
	var total int64
	for _, account := range store.accounts {
		total += account.Balance
	}
	return total, nil
}

func (store *stubStore) AggregateCompleted(ctx context.Context) (MintBurn, error) {
	var aggregate MintBurn
	for _, transaction := range store.transactions {
		if transaction.Status != TransactionCompleted {
			continue
		}
		if transaction.Type == TransactionCredit {
			aggregate.Minted += transaction.Amount.Int64()
			aggregate.MintedCount++
		} else {
			aggregate.Burned += transaction.Amount.Int64()
			aggregate.BurnedCount++
		}
	}
	return aggregate, nil
}

func (store *stubStore) DailyFlow(ctx context.Context, days int) ([]DailyFlow, error) {
	byDate := map[string]*DailyFlow{}
	for _, transaction := range store.transactions {
		if transaction.Status != TransactionCompleted {
			continue
		}
		date := time.Unix(transaction.CreatedUnixUTC, 0).UTC().Format("2006-01-02")
		flow, ok := byDate[date]
		if !ok {
			flow = &DailyFlow{Date: date}
			byDate[date] = flow
		}
		if transaction.Type == TransactionCredit {
			flow.Credited += transaction.Amount.Int64()
			flow.CreditCount++
		} else {
			flow.Debited += transaction.Amount.Int64()
			flow.DebitCount++
		}
	}
	var flows []DailyFlow
	for _, flow := range byDate {
		flows = append(flows, *flow)
	}
	sort.Slice(flows, func(left, right int) bool {
		return flows[left].Date < flows[right].Date
	})
	return flows, nil
}

func (store *stubStore) TopAccountsBySource(ctx context.Context, source TransactionSource, limit int) ([]TopActor, error) {
	totals := map[string]*TopActor{}
	for _, transaction := range store.transactions {
		if transaction.Status != TransactionCompleted || transaction.Source != source {
			continue
		}
		actor, ok := totals[transaction.AccountID]
		if !ok {
			account := store.accounts[transaction.AccountID]
			actor = &TopActor{AccountID: transaction.AccountID, UserID: account.UserID.String()}
			totals[transaction.AccountID] = actor
		}
		actor.Total += transaction.Amount.Int64()
		actor.TransactionCount++
	}
	var actors []TopActor
	for _, actor := range totals {
		actors = append(actors, *actor)
	}
	sort.Slice(actors, func(left, right int) bool {
		return actors[left].Total > actors[right].Total
	})
	if limit > 0 && len(actors) > limit {
		actors = actors[:limit]
	}
	return actors, nil
}

func (store *stubStore) ListLargeTransactions(ctx context.Context, threshold int64, limit int) ([]Transaction, error) {
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.Amount.Int64() >= threshold {
			matched = append(matched, transaction)
		}
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) ListFailedTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.Status == TransactionFailed {
			matched = append(matched, transaction)
		}
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) SampleAccountIDs(ctx context.Context, limit int) ([]string, error) {
	var accountIDs []string
	for accountID := range store.accounts {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Strings(accountIDs)
	if limit > 0 && len(accountIDs) > limit {
		accountIDs = accountIDs[:limit]
	}
	return accountIDs, nil
}

func (store *stubStore) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	for _, account := range store.accounts {
		if account.Balance < 0 {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) CountFailedTransactionsSince(ctx context.Context, sinceUnixUTC int64) (int64, error) {
	var count int64
	for _, transaction := range store.transactions {
		if transaction.Status == TransactionFailed && transaction.CreatedUnixUTC >= sinceUnixUTC {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) mustBalance(test *testing.T, userID UserID) int64 {
	test.Helper()
	accountID, ok := store.accountsByUser[userID.String()]
	if !ok {
		test.Fatalf("account for user %s not found", userID.String())
	}
	return store.accounts[accountID].Balance
}

func (store *stubStore) mustCall(test *testing.T, callID CallID) Call {
	test.Helper()
	call, ok := store.calls[callID.String()]
	if !ok {
		test.Fatalf("call %s not found", callID.String())
	}
	return *call
}

func (store *stubStore) seedBalance(test *testing.T, service *Service, userID UserID, balance int64) {
	test.Helper()
	account, err := store.GetOrCreateAccount(context.Background(), userID)
	if err != nil {
		test.Fatalf("seed account: %v", err)
	}
	if balance == 0 {
		return
	}
	input, err := NewTransactionInput(account.AccountID, TransactionCredit, Coins(balance), SourcePurchase, "", TransactionCompleted, "Seed balance")
	if err != nil {
		test.Fatalf("seed input: %v", err)
	}
	if _, _, err := service.postTransaction(context.Background(), store, input); err != nil {
		test.Fatalf("seed post: %v", err)
	}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1_000_000 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	value, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return value
}

func mustCallID(test *testing.T, raw string) CallID {
	test.Helper()
	value, err := NewCallID(raw)
	if err != nil {
		test.Fatalf("call id: %v", err)
	}
	return value
}

func mustReason(test *testing.T, raw string) Reason {
	test.Helper()
	value, err := NewReason(raw)
	if err != nil {
		test.Fatalf("reason: %v", err)
	}
	return value
}

func mustCallInput(test *testing.T, callID CallID, payer UserID, earner UserID, durationSeconds int64, pricePerMinute int64) CallInput {
	test.Helper()
	input, err := NewCallInput(callID, payer, earner, durationSeconds, pricePerMinute)
	if err != nil {
		test.Fatalf("call input: %v", err)
	}
	return input
}
