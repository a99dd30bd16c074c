// Package domain models receipt-based wallet top-ups and the configured
// ways to pay.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Payment is one uploaded receipt awaiting review. Submitting credits the
// wallet's pending tier; review moves the amount to confirmed or claws it
// back. Status is terminal after review.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID    `gorm:"not null;index" json:"account_id"`
	MethodID    *snowflake.ID   `json:"method_id,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	ReceiptPath string          `gorm:"type:text" json:"receipt_path"`
	Status      PaymentStatus   `gorm:"type:text;not null;index" json:"status"`
	Notes       string          `gorm:"type:text" json:"notes"`
	ReviewedBy  *snowflake.ID   `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// PaymentMethod is an admin-configured payment channel. Config carries
// channel-specific fields (card number, wallet address) as free-form JSON.
type PaymentMethod struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Kind      string            `gorm:"type:text;not null" json:"kind"`
	Config    datatypes.JSONMap `json:"config"`
	Enabled   bool              `gorm:"not null;default:true" json:"enabled"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentMethod) TableName() string { return "payment_methods" }

var (
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrPaymentNotPending = errors.New("payment_not_pending")
	ErrMethodNotFound    = errors.New("payment_method_not_found")
	ErrMethodDisabled    = errors.New("payment_method_disabled")
)
