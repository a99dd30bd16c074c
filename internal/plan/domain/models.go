// Package domain holds the subscription plan catalog model.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "ACTIVE"
	PlanStatusInactive PlanStatus = "INACTIVE"
)

// Plan is a purchasable service package. Orders snapshot Days, QuotaGB and
// the applicable price at creation time; later plan edits never touch
// existing orders.
type Plan struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Days        int             `gorm:"not null" json:"days"`
	QuotaGB     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"quota_gb"`
	PriceAgent  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"price_agent"`
	PricePublic decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"price_public"`
	Status      PlanStatus      `gorm:"type:text;not null;index" json:"status"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PriceFor returns the price tier matching the buyer's account kind.
func (p Plan) PriceFor(kind accountdomain.AccountKind) decimal.Decimal {
	if kind == accountdomain.AccountKindAgent {
		return p.PriceAgent
	}
	return p.PricePublic
}

func (p Plan) IsActive() bool { return p.Status == PlanStatusActive }

var (
	ErrPlanNotFound = errors.New("plan_not_found")
	ErrPlanInactive = errors.New("plan_inactive")
)
