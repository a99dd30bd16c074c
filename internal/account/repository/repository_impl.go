package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lvlrf/radpanel/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, kind, credit_confirmed, credit_pending, negative_since, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		string(account.Kind),
		account.CreditConfirmed,
		account.CreditPending,
		account.NegativeSince,
		string(account.Status),
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, credit_confirmed, credit_pending, negative_since, status, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) ListNegativeBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, credit_confirmed, credit_pending, negative_since, status, created_at, updated_at
		 FROM accounts
		 WHERE status = ? AND negative_since IS NOT NULL AND negative_since < ?
		 ORDER BY negative_since ASC
		 LIMIT ?`,
		string(domain.AccountStatusActive),
		cutoff,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
