// Package domain contains the persistence model for paying principals.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes resellers from direct customers. The two kinds
// share one model; behavioural differences hang off capability methods
// instead of type probing at call sites.
type AccountKind string

const (
	AccountKindAgent    AccountKind = "AGENT"
	AccountKindCustomer AccountKind = "CUSTOMER"
)

// EnforcesGracePeriod reports whether negative balances on this kind of
// account are tracked and eventually enforced by the scheduler.
func (k AccountKind) EnforcesGracePeriod() bool {
	return k == AccountKindAgent
}

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Account carries the two-tier prepaid balance for one principal.
// Only the wallet service writes the credit fields.
type Account struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	Name            string          `gorm:"type:text;not null"`
	Kind            AccountKind     `gorm:"type:text;not null;index"`
	CreditConfirmed decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	CreditPending   decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	NegativeSince   *time.Time      `gorm:""`
	Status          AccountStatus   `gorm:"type:text;not null;index"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// TotalCredit is the effective spendable balance.
func (a Account) TotalCredit() decimal.Decimal {
	return a.CreditConfirmed.Add(a.CreditPending)
}

func (a Account) IsNegative() bool {
	return a.TotalCredit().IsNegative()
}

var (
	ErrAccountNotFound  = errors.New("account_not_found")
	ErrAccountSuspended = errors.New("account_suspended")
)
