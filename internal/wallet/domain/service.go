package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor identifies who initiated a ledger operation. A nil actor means the
// system itself (scheduler, saga compensation).
type Actor struct {
	ID *snowflake.ID
}

var System = Actor{}

func ByUser(id snowflake.ID) Actor {
	return Actor{ID: &id}
}

type ListTransactionsRequest struct {
	AccountID snowflake.ID
	Kind      TransactionKind
	pagination.Pagination
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

// Service owns every Account balance mutation and all Transaction writes.
// Each operation is a single atomic unit executing under a per-account row
// lock; the account's balance chain cannot be corrupted by concurrent calls.
//
// The *Tx variants run inside a caller-provided transaction so the order
// lifecycle can compose a ledger write with its own state transition. The
// plain variants open their own transaction.
type Service interface {
	CreditPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID) (*Transaction, error)
	ConfirmPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor Actor, notes string) (*Transaction, error)
	RejectPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor Actor, notes string) (*Transaction, error)
	ManualAdjust(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, actor Actor, notes string) (*Transaction, error)

	Deduct(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID) (*Transaction, error)
	Refund(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID, notes string) (*Transaction, error)

	CreditPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID) (*Transaction, error)
	ConfirmPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor Actor, notes string) (*Transaction, error)
	RejectPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor Actor, notes string) (*Transaction, error)
	DeductTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID) (*Transaction, error)
	RefundTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID, notes string) (*Transaction, error)
	RecordDisableTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, orderID snowflake.ID, notes string) (*Transaction, error)

	Balance(ctx context.Context, accountID snowflake.ID) (Balance, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
}

var (
	ErrInsufficientCredit = errors.New("insufficient_credit")
	ErrInvalidAmount      = errors.New("invalid_amount")
)
