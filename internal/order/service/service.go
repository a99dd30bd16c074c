package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lvlrf/radpanel/internal/order/domain"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
)

type CreateRequest struct {
	AccountID snowflake.ID
	PlanID    snowflake.ID
	Username  string
	Note      string
	// OnHold creates the remote resource without starting its clock.
	OnHold bool
}

type OrderDetail struct {
	Order    domain.Order             `json:"order"`
	Snapshot *domain.ResourceSnapshot `json:"snapshot,omitempty"`
}

// Service drives the order state machine. Every transition that touches the
// wallet composes the ledger write into the same database transaction as the
// order update.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*OrderDetail, error)
	// Delete tears the order down, refunding whatever the calculator allows.
	Delete(ctx context.Context, orderID snowflake.ID, actor walletdomain.Actor) (*domain.Order, error)
	// Disable is the enforcement path. It never refunds.
	Disable(ctx context.Context, orderID snowflake.ID, reason string) error

	Get(ctx context.Context, orderID snowflake.ID) (*OrderDetail, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error)
}
