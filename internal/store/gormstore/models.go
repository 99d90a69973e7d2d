package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the accounts table; balance is the materialized
// projection of the transactions table.
type Account struct {
	AccountID string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"not null;index:uniq_accounts_user,unique"`
	Balance   int64     `gorm:"not null;default:0"`
	Disabled  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table, the append-only coin log.
type Transaction struct {
	TransactionID string    `gorm:"type:uuid;primaryKey"`
	AccountID     string    `gorm:"type:uuid;not null;index:idx_transactions_account_created,priority:1"`
	Type          string    `gorm:"not null"`
	Amount        int64     `gorm:"not null"`
	Source        string    `gorm:"not null;index"`
	RelatedCallID *string   `gorm:"index"`
	Status        string    `gorm:"not null;index"`
	Description   string    `gorm:""`
	CreatedAt     time.Time `gorm:"not null;index:idx_transactions_account_created,priority:2"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// Call mirrors the calls table; refund_status is its only mutable column.
type Call struct {
	CallID           string    `gorm:"primaryKey"`
	PayerAccountID   string    `gorm:"type:uuid;not null;index"`
	EarnerAccountID  string    `gorm:"type:uuid;not null;index"`
	DurationSeconds  int64     `gorm:"not null"`
	PricePerMinute   int64     `gorm:"not null"`
	CoinsDeducted    int64     `gorm:"not null"`
	CoinsEarned      int64     `gorm:"not null"`
	RefundStatus     string    `gorm:"not null"`
	FlaggedForReview bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null;index"`
}

func (Call) TableName() string { return "calls" }

// RefundRecord mirrors the refunds table; the call id primary key enforces the
// one-to-one relationship with a refunded call.
type RefundRecord struct {
	CallID              string    `gorm:"primaryKey"`
	AmountRefunded      int64     `gorm:"not null"`
	PayerAccountID      string    `gorm:"type:uuid;not null"`
	PayerBalanceBefore  int64     `gorm:"not null"`
	PayerBalanceAfter   int64     `gorm:"not null"`
	EarnerAccountID     *string   `gorm:"type:uuid"`
	EarnerBalanceBefore *int64    `gorm:""`
	EarnerBalanceAfter  *int64    `gorm:""`
	Reason              string    `gorm:"not null"`
	AdminID             string    `gorm:"not null"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (RefundRecord) TableName() string { return "refunds" }

// AdminAction mirrors the admin_actions audit table.
type AdminAction struct {
	ActionID   string         `gorm:"type:uuid;primaryKey"`
	AdminID    string         `gorm:"not null;index"`
	AdminEmail string         `gorm:"not null"`
	Action     string         `gorm:"not null"`
	TargetType string         `gorm:"not null"`
	TargetID   string         `gorm:"not null;index"`
	Reason     string         `gorm:"not null"`
	Details    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

func (AdminAction) TableName() string { return "admin_actions" }

func (action *AdminAction) BeforeCreate(tx *gorm.DB) error {
	if action.ActionID == "" {
		action.ActionID = uuid.NewString()
	}
	return nil
}
