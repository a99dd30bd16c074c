// Package domain holds the order state machine model and its locally
// cached mirror of the remote resource.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusActive   OrderStatus = "ACTIVE"
	OrderStatusDisabled OrderStatus = "DISABLED"
	OrderStatusDeleted  OrderStatus = "DELETED"
)

// Order is one purchase of a plan. Plan name, price, days and quota are
// snapshotted at purchase time; later plan edits never affect an existing
// order. Status moves one way only: ACTIVE -> DISABLED -> DELETED or
// ACTIVE -> DELETED.
type Order struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	PlanID    snowflake.ID `gorm:"not null" json:"plan_id"`

	PlanName string          `gorm:"type:text;not null" json:"plan_name"`
	Price    decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"price"`
	Days     int             `gorm:"not null" json:"days"`
	QuotaGB  decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"quota_gb"`

	ExternalUsername string `gorm:"type:text;not null;uniqueIndex" json:"external_username"`
	// OnHold records that activation was deferred at creation time.
	OnHold bool `gorm:"not null" json:"on_hold"`

	Status    OrderStatus `gorm:"type:text;not null;index" json:"status"`
	CreatedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// RemoteStatus is the locally tracked view of the external record's state.
type RemoteStatus string

const (
	RemoteStatusActive   RemoteStatus = "ACTIVE"
	RemoteStatusDisabled RemoteStatus = "DISABLED"
	RemoteStatusExpired  RemoteStatus = "EXPIRED"
	RemoteStatusLimited  RemoteStatus = "LIMITED"
)

// ResourceSnapshot mirrors the remote provisioning record 1:1 with an
// order. Written by the order lifecycle on create/delete and by the
// reconciliation sync; its status is tracked independently of Order.Status.
type ResourceSnapshot struct {
	OrderID         snowflake.ID    `gorm:"primaryKey" json:"order_id"`
	SubscriptionURL string          `gorm:"type:text" json:"subscription_url"`
	ExpireAt        *time.Time      `json:"expire_at,omitempty"`
	QuotaGB         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"quota_gb"`
	UsedGB          decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"used_gb"`
	RemoteStatus    RemoteStatus    `gorm:"type:text;not null;index" json:"remote_status"`
	LastSyncedAt    *time.Time      `json:"last_synced_at,omitempty"`
}

// TableName sets the database table name.
func (ResourceSnapshot) TableName() string { return "resource_snapshots" }

var (
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrOrderAlreadyDeleted = errors.New("order_already_deleted")
	ErrOrderNotActive      = errors.New("order_not_active")
	ErrUsernameTaken       = errors.New("username_taken")
)
