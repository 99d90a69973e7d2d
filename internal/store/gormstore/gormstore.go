package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lumicall/coinledger/pkg/coinledger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultDetailsJSON    = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectBalance     = "balance"
	errorSubjectTransaction = "transaction"
	errorSubjectCall        = "call"
	errorSubjectRefund      = "refund"
	errorSubjectAction      = "action"
	errorCodeCreate         = "create"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLookup         = "lookup"
	errorCodeAdjust         = "adjust"
	errorCodeAggregate      = "aggregate"
	errorCodeMarkRefunded   = "mark_refunded"
	errorCodeCount          = "count"
	errorCodeSample         = "sample"
)

// Store implements coinledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping verifies the underlying database connection is alive.
func (store *Store) Ping(ctx context.Context) error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithTx executes fn within a database transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore coinledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetOrCreateAccount(ctx context.Context, userID coinledger.UserID) (coinledger.Account, error) {
	var account Account
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"user_id": clause.Expr{SQL: "excluded.user_id"}}),
		}).
		FirstOrCreate(&account, Account{UserID: userID.String()}).Error
	if err != nil {
		return coinledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	mapped, err := mapAccount(account)
	if err != nil {
		return coinledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return mapped, nil
}

func (store *Store) GetAccount(ctx context.Context, accountID string) (coinledger.Account, error) {
	return store.getAccount(ctx, accountID, false)
}

func (store *Store) GetAccountForUpdate(ctx context.Context, accountID string) (coinledger.Account, error) {
	return store.getAccount(ctx, accountID, true)
}

func (store *Store) getAccount(ctx context.Context, accountID string, forUpdate bool) (coinledger.Account, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account Account
	err := query.Where("account_id = ?", accountID).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return coinledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, coinledger.ErrAccountNotFound)
		}
		return coinledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	mapped, err := mapAccount(account)
	if err != nil {
		return coinledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return mapped, nil
}

// AdjustBalance applies a signed delta with a conditional update so a debit
// can never drive the projection negative.
func (store *Store) AdjustBalance(ctx context.Context, accountID string, delta int64) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND balance + ? >= 0", accountID, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeAdjust, result.Error)
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := store.db.WithContext(ctx).Model(&Account{}).Where("account_id = ?", accountID).Count(&exists).Error; err != nil {
			return 0, wrapStoreError(errorSubjectBalance, errorCodeAdjust, err)
		}
		if exists == 0 {
			return 0, wrapStoreError(errorSubjectBalance, errorCodeAdjust, coinledger.ErrAccountNotFound)
		}
		return 0, wrapStoreError(errorSubjectBalance, errorCodeAdjust, coinledger.ErrInsufficientFunds)
	}
	var balance int64
	err := store.db.WithContext(ctx).Model(&Account{}).Where("account_id = ?", accountID).Select("balance").Scan(&balance).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	return balance, nil
}

func (store *Store) InsertTransaction(ctx context.Context, input coinledger.TransactionInput) (string, error) {
	var relatedCallID *string
	if input.RelatedCallID != "" {
		value := input.RelatedCallID
		relatedCallID = &value
	}
	row := Transaction{
		AccountID:     input.AccountID,
		Type:          input.Type.String(),
		Amount:        input.Amount.Int64(),
		Source:        input.Source.String(),
		RelatedCallID: relatedCallID,
		Status:        input.Status.String(),
		Description:   input.Description,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return row.TransactionID, nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID string, newestFirst bool, limit int) ([]coinledger.Transaction, error) {
	order := "created_at ASC"
	if newestFirst {
		order = "created_at DESC"
	}
	query := store.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order(order)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return mapTransactions(rows)
}

func (store *Store) SumCompleted(ctx context.Context, accountID string) (int64, int64, error) {
	var sums struct {
		Credited int64
		Debited  int64
	}
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select(
			"coalesce(sum(case when type = ? then amount else 0 end),0) as credited, coalesce(sum(case when type = ? then amount else 0 end),0) as debited",
			coinledger.TransactionCredit.String(),
			coinledger.TransactionDebit.String(),
		).
		Where("account_id = ? AND status = ?", accountID, coinledger.TransactionCompleted.String()).
		Scan(&sums).Error
	if err != nil {
		return 0, 0, wrapStoreError(errorSubjectBalance, errorCodeAggregate, err)
	}
	return sums.Credited, sums.Debited, nil
}

func (store *Store) CreateCall(ctx context.Context, call coinledger.Call) error {
	row := Call{
		CallID:           call.CallID.String(),
		PayerAccountID:   call.PayerAccountID,
		EarnerAccountID:  call.EarnerAccountID,
		DurationSeconds:  call.DurationSeconds,
		PricePerMinute:   call.PricePerMinute,
		CoinsDeducted:    call.CoinsDeducted,
		CoinsEarned:      call.CoinsEarned,
		RefundStatus:     call.RefundStatus.String(),
		FlaggedForReview: call.FlaggedForReview,
		CreatedAt:        time.Unix(call.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectCall, errorCodeCreate, coinledger.ErrCallAlreadySettled)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCall, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetCall(ctx context.Context, callID coinledger.CallID) (coinledger.Call, error) {
	return store.getCall(ctx, callID, false)
}

func (store *Store) GetCallForUpdate(ctx context.Context, callID coinledger.CallID) (coinledger.Call, error) {
	return store.getCall(ctx, callID, true)
}

func (store *Store) getCall(ctx context.Context, callID coinledger.CallID, forUpdate bool) (coinledger.Call, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row Call
	err := query.Where("call_id = ?", callID.String()).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return coinledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeGet, coinledger.ErrCallNotFound)
		}
		return coinledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeGet, err)
	}
	mapped, err := mapCall(row)
	if err != nil {
		return coinledger.Call{}, wrapStoreError(errorSubjectCall, errorCodeInvalid, err)
	}
	return mapped, nil
}

// MarkCallRefunded performs the atomic none -> refunded transition; losing a
// race surfaces as zero rows affected.
func (store *Store) MarkCallRefunded(ctx context.Context, callID coinledger.CallID) error {
	result := store.db.WithContext(ctx).
		Model(&Call{}).
		Where("call_id = ? AND refund_status = ?", callID.String(), coinledger.RefundStatusNone.String()).
		Update("refund_status", coinledger.RefundStatusRefunded.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectCall, errorCodeMarkRefunded, result.Error)
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := store.db.WithContext(ctx).Model(&Call{}).Where("call_id = ?", callID.String()).Count(&exists).Error; err != nil {
			return wrapStoreError(errorSubjectCall, errorCodeMarkRefunded, err)
		}
		if exists == 0 {
			return wrapStoreError(errorSubjectCall, errorCodeMarkRefunded, coinledger.ErrCallNotFound)
		}
		return wrapStoreError(errorSubjectCall, errorCodeMarkRefunded, coinledger.ErrAlreadyRefunded)
	}
	return nil
}

func (store *Store) ListCalls(ctx context.Context, page coinledger.Page, anomaliesOnly bool) ([]coinledger.Call, int64, error) {
	query := store.db.WithContext(ctx).Model(&Call{})
	if anomaliesOnly {
		query = query.Where(
			"duration_seconds < ? OR flagged_for_review = ? OR refund_status = ?",
			10, true, coinledger.RefundStatusRefunded.String(),
		)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError(errorSubjectCall, errorCodeCount, err)
	}
	var rows []Call
	err := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrapStoreError(errorSubjectCall, errorCodeList, err)
	}
	calls, err := mapCalls(rows)
	if err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}

func (store *Store) ListCallsForAccount(ctx context.Context, accountID string, limit int) ([]coinledger.Call, error) {
	query := store.db.WithContext(ctx).
		Where("payer_account_id = ? OR earner_account_id = ?", accountID, accountID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []Call
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectCall, errorCodeList, err)
	}
	return mapCalls(rows)
}

func (store *Store) CreateRefundRecord(ctx context.Context, record coinledger.RefundRecord) error {
	row := RefundRecord{
		CallID:             record.CallID.String(),
		AmountRefunded:     record.AmountRefunded,
		PayerAccountID:     record.PayerAccountID,
		PayerBalanceBefore: record.PayerBalanceBefore,
		PayerBalanceAfter:  record.PayerBalanceAfter,
		Reason:             record.Reason.String(),
		AdminID:            record.AdminID,
		CreatedAt:          time.Unix(record.CreatedUnixUTC, 0).UTC(),
	}
	if record.Clawback != nil {
		earnerAccountID := record.Clawback.EarnerAccountID
		balanceBefore := record.Clawback.BalanceBefore
		balanceAfter := record.Clawback.BalanceAfter
		row.EarnerAccountID = &earnerAccountID
		row.EarnerBalanceBefore = &balanceBefore
		row.EarnerBalanceAfter = &balanceAfter
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectRefund, errorCodeCreate, coinledger.ErrAlreadyRefunded)
	}
	if err != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) InsertAdminAction(ctx context.Context, action coinledger.AdminAction) error {
	row := AdminAction{
		AdminID:    action.AdminID,
		AdminEmail: action.AdminEmail,
		Action:     action.Action,
		TargetType: action.TargetType,
		TargetID:   action.TargetID,
		Reason:     action.Reason,
		Details:    detailsJSON(action.DetailsJSON),
		CreatedAt:  time.Unix(action.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectAction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListAdminActions(ctx context.Context, page coinledger.Page) ([]coinledger.AdminAction, int64, error) {
	var total int64
	if err := store.db.WithContext(ctx).Model(&AdminAction{}).Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError(errorSubjectAction, errorCodeCount, err)
	}
	var rows []AdminAction
	err := store.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrapStoreError(errorSubjectAction, errorCodeList, err)
	}
	actions := make([]coinledger.AdminAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, coinledger.AdminAction{
			ActionID:       row.ActionID,
			AdminID:        row.AdminID,
			AdminEmail:     row.AdminEmail,
			Action:         row.Action,
			TargetType:     row.TargetType,
			TargetID:       row.TargetID,
			Reason:         row.Reason,
			DetailsJSON:    string(row.Details),
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return actions, total, nil
}

func (store *Store) SumAllBalances(ctx context.Context) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Account{}).
		Select("coalesce(sum(balance),0) as total").
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeAggregate, err)
	}
	return sum.Total, nil
}

func (store *Store) AggregateCompleted(ctx context.Context) (coinledger.MintBurn, error) {
	var aggregate struct {
		Minted      int64
		MintedCount int64
		Burned      int64
		BurnedCount int64
	}
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select(
			"coalesce(sum(case when type = ? then amount else 0 end),0) as minted, "+
				"coalesce(sum(case when type = ? then 1 else 0 end),0) as minted_count, "+
				"coalesce(sum(case when type = ? then amount else 0 end),0) as burned, "+
				"coalesce(sum(case when type = ? then 1 else 0 end),0) as burned_count",
			coinledger.TransactionCredit.String(),
			coinledger.TransactionCredit.String(),
			coinledger.TransactionDebit.String(),
			coinledger.TransactionDebit.String(),
		).
		Where("status = ?", coinledger.TransactionCompleted.String()).
		Scan(&aggregate).Error
	if err != nil {
		return coinledger.MintBurn{}, wrapStoreError(errorSubjectBalance, errorCodeAggregate, err)
	}
	return coinledger.MintBurn{
		Minted:      aggregate.Minted,
		MintedCount: aggregate.MintedCount,
		Burned:      aggregate.Burned,
		BurnedCount: aggregate.BurnedCount,
	}, nil
}

// DailyFlow loads the window's completed transactions and folds them by day in
// Go, which keeps the date bucketing identical across sqlite and postgres.
func (store *Store) DailyFlow(ctx context.Context, days int) ([]coinledger.DailyFlow, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Select("type", "amount", "created_at").
		Where("status = ? AND created_at >= ?", coinledger.TransactionCompleted.String(), cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	byDate := map[string]*coinledger.DailyFlow{}
	for _, row := range rows {
		date := row.CreatedAt.UTC().Format("2006-01-02")
		flow, ok := byDate[date]
		if !ok {
			flow = &coinledger.DailyFlow{Date: date}
			byDate[date] = flow
		}
		if row.Type == coinledger.TransactionCredit.String() {
			flow.Credited += row.Amount
			flow.CreditCount++
		} else {
			flow.Debited += row.Amount
			flow.DebitCount++
		}
	}
	flows := make([]coinledger.DailyFlow, 0, len(byDate))
	for day := 0; day <= days; day++ {
		date := cutoff.AddDate(0, 0, day).Format("2006-01-02")
		if flow, ok := byDate[date]; ok {
			flows = append(flows, *flow)
		}
	}
	return flows, nil
}

func (store *Store) TopAccountsBySource(ctx context.Context, source coinledger.TransactionSource, limit int) ([]coinledger.TopActor, error) {
	var rows []struct {
		AccountID        string
		UserID           string
		Total            int64
		TransactionCount int64
	}
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("transactions.account_id, accounts.user_id, sum(transactions.amount) as total, count(*) as transaction_count").
		Joins("join accounts on accounts.account_id = transactions.account_id").
		Where("transactions.source = ? AND transactions.status = ?", source.String(), coinledger.TransactionCompleted.String()).
		Group("transactions.account_id, accounts.user_id").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeAggregate, err)
	}
	actors := make([]coinledger.TopActor, 0, len(rows))
	for _, row := range rows {
		actors = append(actors, coinledger.TopActor{
			AccountID:        row.AccountID,
			UserID:           row.UserID,
			Total:            row.Total,
			TransactionCount: row.TransactionCount,
		})
	}
	return actors, nil
}

func (store *Store) ListLargeTransactions(ctx context.Context, threshold int64, limit int) ([]coinledger.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("amount >= ?", threshold).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return mapTransactions(rows)
}

func (store *Store) ListFailedTransactions(ctx context.Context, limit int) ([]coinledger.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("status = ?", coinledger.TransactionFailed.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return mapTransactions(rows)
}

// SampleAccountIDs picks a random bounded subset for reconciliation replays.
// random() exists on both sqlite and postgres.
func (store *Store) SampleAccountIDs(ctx context.Context, limit int) ([]string, error) {
	var accountIDs []string
	err := store.db.WithContext(ctx).
		Model(&Account{}).
		Order("random()").
		Limit(limit).
		Pluck("account_id", &accountIDs).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeSample, err)
	}
	return accountIDs, nil
}

func (store *Store) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("balance < 0").
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectAccount, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) CountFailedTransactionsSince(ctx context.Context, sinceUnixUTC int64) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("status = ? AND created_at >= ?", coinledger.TransactionFailed.String(), time.Unix(sinceUnixUTC, 0).UTC()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransaction, errorCodeCount, err)
	}
	return count, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return coinledger.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapAccount(row Account) (coinledger.Account, error) {
	userID, err := coinledger.NewUserID(row.UserID)
	if err != nil {
		return coinledger.Account{}, err
	}
	return coinledger.Account{
		AccountID:      row.AccountID,
		UserID:         userID,
		Balance:        row.Balance,
		Disabled:       row.Disabled,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapTransactions(rows []Transaction) ([]coinledger.Transaction, error) {
	transactions := make([]coinledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func mapTransaction(row Transaction) (coinledger.Transaction, error) {
	transactionType, err := coinledger.ParseTransactionType(row.Type)
	if err != nil {
		return coinledger.Transaction{}, err
	}
	source, err := coinledger.ParseTransactionSource(row.Source)
	if err != nil {
		return coinledger.Transaction{}, err
	}
	status, err := coinledger.ParseTransactionStatus(row.Status)
	if err != nil {
		return coinledger.Transaction{}, err
	}
	amount, err := coinledger.NewCoins(row.Amount)
	if err != nil {
		return coinledger.Transaction{}, err
	}
	var relatedCallID string
	if row.RelatedCallID != nil {
		relatedCallID = *row.RelatedCallID
	}
	return coinledger.Transaction{
		TransactionID:  row.TransactionID,
		AccountID:      row.AccountID,
		Type:           transactionType,
		Amount:         amount,
		Source:         source,
		RelatedCallID:  relatedCallID,
		Status:         status,
		Description:    row.Description,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapCalls(rows []Call) ([]coinledger.Call, error) {
	calls := make([]coinledger.Call, 0, len(rows))
	for _, row := range rows {
		call, err := mapCall(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCall, errorCodeInvalid, err)
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func mapCall(row Call) (coinledger.Call, error) {
	callID, err := coinledger.NewCallID(row.CallID)
	if err != nil {
		return coinledger.Call{}, err
	}
	refundStatus, err := coinledger.ParseRefundStatus(row.RefundStatus)
	if err != nil {
		return coinledger.Call{}, err
	}
	return coinledger.Call{
		CallID:           callID,
		PayerAccountID:   row.PayerAccountID,
		EarnerAccountID:  row.EarnerAccountID,
		DurationSeconds:  row.DurationSeconds,
		PricePerMinute:   row.PricePerMinute,
		CoinsDeducted:    row.CoinsDeducted,
		CoinsEarned:      row.CoinsEarned,
		RefundStatus:     refundStatus,
		FlaggedForReview: row.FlaggedForReview,
		CreatedUnixUTC:   row.CreatedAt.Unix(),
	}, nil
}

func detailsJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultDetailsJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
