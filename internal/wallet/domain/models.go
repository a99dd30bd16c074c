// Package domain defines the wallet ledger: the append-only transaction log
// and the service owning all balance mutation.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionKind enumerates ledger event types. Wire values match the
// original panel's audit log so historical rows stay readable.
type TransactionKind string

const (
	KindPendingCharge    TransactionKind = "CHARGE_PENDING"
	KindApproveCharge    TransactionKind = "CHARGE_APPROVED"
	KindRejectCharge     TransactionKind = "CHARGE_REJECTED"
	KindManualAdjustment TransactionKind = "CHARGE_MANUAL"
	KindOrderCreate      TransactionKind = "ORDER_CREATED"
	KindOrderRefund      TransactionKind = "ORDER_REFUND"
	KindOrderDisable     TransactionKind = "ORDER_DISABLED"
)

type ReferenceKind string

const (
	ReferencePayment ReferenceKind = "PAYMENT"
	ReferenceOrder   ReferenceKind = "ORDER"
	ReferenceManual  ReferenceKind = "MANUAL"
)

// Transaction is an immutable audit record. Rows are only ever inserted;
// successive balanceAfter/balanceBefore values form a contiguous chain per
// account.
type Transaction struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	AccountID     snowflake.ID    `gorm:"not null;index"`
	Kind          TransactionKind `gorm:"type:text;not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	ReferenceKind *ReferenceKind  `gorm:"type:text"`
	ReferenceID   *snowflake.ID   `gorm:"index"`
	Notes         string          `gorm:"type:text"`
	ActorID       *snowflake.ID   `gorm:""` // nil for system-initiated entries
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// Balance is a read-only snapshot of one account's credit tiers.
type Balance struct {
	Confirmed decimal.Decimal `json:"confirmed"`
	Pending   decimal.Decimal `json:"pending"`
	Total     decimal.Decimal `json:"total"`
}
