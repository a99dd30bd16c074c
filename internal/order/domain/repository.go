package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	AccountID snowflake.ID
	Status    OrderStatus
	pagination.Pagination
}

// SnapshotSync is one sync pass result applied to a snapshot.
type SnapshotSync struct {
	OrderID      snowflake.ID
	UsedGB       decimal.Decimal
	RemoteStatus RemoteStatus
	ExpireAt     *time.Time
	SyncedAt     time.Time
}

// ActiveResource joins a still-active snapshot with the order fields the
// sync job needs to address the remote record.
type ActiveResource struct {
	OrderID          snowflake.ID
	ExternalUsername string
	OrderStatus      OrderStatus
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// LockByID reads the order under a row lock for a status transition.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, int64, error)
	ListActiveByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status OrderStatus, deletedAt *time.Time, now time.Time) error

	InsertSnapshot(ctx context.Context, db *gorm.DB, snap *ResourceSnapshot) error
	FindSnapshot(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*ResourceSnapshot, error)
	UpdateSnapshotStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status RemoteStatus) error
	ApplySnapshotSync(ctx context.Context, db *gorm.DB, sync SnapshotSync) error
	// ListActiveResources returns snapshots still marked active, oldest
	// sync first, so every resource eventually gets a pass.
	ListActiveResources(ctx context.Context, db *gorm.DB, limit int) ([]ActiveResource, error)
}
