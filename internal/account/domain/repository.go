package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	// ListNegativeBefore returns active accounts whose balance has been
	// negative since before the cutoff, i.e. past their grace period.
	ListNegativeBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Account, error)
}
