package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lvlrf/radpanel/internal/order/domain"
	"gorm.io/gorm"
)

const orderColumns = `id, account_id, plan_id, plan_name, price, days, quota_gb,
	external_username, on_hold, status, created_at, updated_at, deleted_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.AccountID,
		order.PlanID,
		order.PlanName,
		order.Price,
		order.Days,
		order.QuotaGB,
		order.ExternalUsername,
		order.OnHold,
		string(order.Status),
		order.CreatedAt,
		order.UpdatedAt,
		order.DeletedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.findByID(ctx, db, id, "")
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	return r.findByID(ctx, db, id, " FOR UPDATE")
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, suffix string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`+suffix,
		id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, int64, error) {
	page := filter.Pagination.Normalize()

	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.AccountID != 0 {
		stmt = stmt.Where("account_id = ?", filter.AccountID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Order
	err := stmt.
		Order("created_at DESC, id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) ListActiveByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders
		 WHERE account_id = ? AND status = ?
		 ORDER BY created_at ASC`,
		accountID,
		string(domain.OrderStatusActive),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.OrderStatus, deletedAt *time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, deleted_at = ?, updated_at = ? WHERE id = ?`,
		string(status),
		deletedAt,
		now,
		id,
	).Error
}

func (r *repo) InsertSnapshot(ctx context.Context, db *gorm.DB, snap *domain.ResourceSnapshot) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO resource_snapshots (order_id, subscription_url, expire_at, quota_gb, used_gb, remote_status, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.OrderID,
		snap.SubscriptionURL,
		snap.ExpireAt,
		snap.QuotaGB,
		snap.UsedGB,
		string(snap.RemoteStatus),
		snap.LastSyncedAt,
	).Error
}

func (r *repo) FindSnapshot(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.ResourceSnapshot, error) {
	var s domain.ResourceSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT order_id, subscription_url, expire_at, quota_gb, used_gb, remote_status, last_synced_at
		 FROM resource_snapshots WHERE order_id = ?`,
		orderID,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.OrderID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) UpdateSnapshotStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status domain.RemoteStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE resource_snapshots SET remote_status = ? WHERE order_id = ?`,
		string(status),
		orderID,
	).Error
}

func (r *repo) ApplySnapshotSync(ctx context.Context, db *gorm.DB, sync domain.SnapshotSync) error {
	return db.WithContext(ctx).Exec(
		`UPDATE resource_snapshots
		 SET used_gb = ?, remote_status = ?, expire_at = ?, last_synced_at = ?
		 WHERE order_id = ?`,
		sync.UsedGB,
		string(sync.RemoteStatus),
		sync.ExpireAt,
		sync.SyncedAt,
		sync.OrderID,
	).Error
}

func (r *repo) ListActiveResources(ctx context.Context, db *gorm.DB, limit int) ([]domain.ActiveResource, error) {
	// The boolean sort key keeps never-synced rows first on every dialect.
	var items []domain.ActiveResource
	err := db.WithContext(ctx).Raw(
		`SELECT s.order_id, o.external_username, o.status AS order_status
		 FROM resource_snapshots s
		 JOIN orders o ON o.id = s.order_id
		 WHERE s.remote_status = ?
		 ORDER BY (s.last_synced_at IS NOT NULL), s.last_synced_at ASC
		 LIMIT ?`,
		string(domain.RemoteStatusActive),
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
