package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status PlanStatus
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Plan, error)
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PlanStatus) error
}
