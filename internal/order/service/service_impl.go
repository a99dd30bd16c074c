package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/order/domain"
	plandomain "github.com/lvlrf/radpanel/internal/plan/domain"
	"github.com/lvlrf/radpanel/internal/provisioning"
	"github.com/lvlrf/radpanel/internal/refund"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/lvlrf/radpanel/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Wallet       walletdomain.Service
	Provisioning provisioning.Service
	Orders       domain.Repository
	Accounts     accountdomain.Repository
	Plans        plandomain.Repository
}

type service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	wallet       walletdomain.Service
	provisioning provisioning.Service
	orders       domain.Repository
	accounts     accountdomain.Repository
	plans        plandomain.Repository
	calculator   refund.Calculator
}

func NewService(p Params) Service {
	return &service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		wallet:       p.Wallet,
		provisioning: p.Provisioning,
		orders:       p.Orders,
		accounts:     p.Accounts,
		plans:        p.Plans,
		calculator:   refund.NewCalculator(),
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*OrderDetail, error) {
	acct, err := s.accounts.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	if acct.Status != accountdomain.AccountStatusActive {
		return nil, accountdomain.ErrAccountSuspended
	}

	plan, err := s.plans.FindByID(ctx, s.db, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	if !plan.IsActive() {
		return nil, plandomain.ErrPlanInactive
	}

	price := plan.PriceFor(acct.Kind)

	// Advisory pre-check. The deduct below re-verifies under the account
	// row lock, so a concurrent spend cannot slip past this read.
	if acct.TotalCredit().LessThan(price) {
		return nil, walletdomain.ErrInsufficientCredit
	}

	taken, err := s.provisioning.Exists(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	rec, err := s.provisioning.Create(ctx, provisioning.CreateRequest{
		Username: req.Username,
		Days:     plan.Days,
		QuotaGB:  plan.QuotaGB,
		Note:     req.Note,
		OnHold:   req.OnHold,
	})
	if err != nil {
		if errors.Is(err, provisioning.ErrUsernameTaken) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:               s.genID.Generate(),
		AccountID:        acct.ID,
		PlanID:           plan.ID,
		PlanName:         plan.Name,
		Price:            price,
		Days:             plan.Days,
		QuotaGB:          plan.QuotaGB,
		ExternalUsername: req.Username,
		OnHold:           req.OnHold,
		Status:           domain.OrderStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	snap := &domain.ResourceSnapshot{
		OrderID:         order.ID,
		SubscriptionURL: rec.SubscriptionURL,
		ExpireAt:        rec.ExpireAt,
		QuotaGB:         plan.QuotaGB,
		UsedGB:          decimal.Zero,
		RemoteStatus:    domain.RemoteStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orders.Insert(ctx, tx, order); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUsernameTaken
			}
			return fmt.Errorf("insert order: %w", err)
		}
		if err := s.orders.InsertSnapshot(ctx, tx, snap); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		if _, err := s.wallet.DeductTx(ctx, tx, acct.ID, price, order.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		// The remote resource exists but the local side rolled back.
		// Best-effort teardown; the sync job catches anything left over.
		if delErr := s.provisioning.Delete(ctx, req.Username); delErr != nil {
			s.log.Warn("compensating delete failed, resource orphaned",
				zap.String("username", req.Username),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.log.Info("order created",
		zap.Int64("order_id", int64(order.ID)),
		zap.Int64("account_id", int64(acct.ID)),
		zap.String("username", req.Username),
		zap.String("price", price.String()),
		zap.Bool("on_hold", req.OnHold),
	)
	return &OrderDetail{Order: *order, Snapshot: snap}, nil
}

func (s *service) Delete(ctx context.Context, orderID snowflake.ID, actor walletdomain.Actor) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusDeleted {
		return nil, domain.ErrOrderAlreadyDeleted
	}

	snap, err := s.orders.FindSnapshot(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// Best-effort usage fetch. An unreachable or already-deleted remote
	// record must not block the local teardown; usage falls back to the
	// last synced figure, then zero.
	usedGB := decimal.Zero
	expireAt := order.CreatedAt.AddDate(0, 0, order.Days)
	expirePtr := &expireAt
	onHold := order.OnHold
	if snap != nil {
		usedGB = snap.UsedGB
		if snap.ExpireAt != nil {
			expirePtr = snap.ExpireAt
		}
	}
	rec, err := s.provisioning.Get(ctx, order.ExternalUsername)
	switch {
	case err == nil:
		usedGB = rec.UsedGB()
		if rec.ExpireAt != nil {
			expirePtr = rec.ExpireAt
		}
		onHold = rec.Status == provisioning.StatusOnHold
	case errors.Is(err, provisioning.ErrNotFound):
		// Already gone remotely; refund from the local snapshot.
	default:
		s.log.Warn("usage fetch failed, refunding from snapshot",
			zap.String("username", order.ExternalUsername),
			zap.Error(err),
		)
	}

	amount, eligible := s.calculator.Calculate(now, refund.Input{
		Price:          order.Price,
		OrderCreatedAt: order.CreatedAt,
		OnHold:         onHold,
		ExpireAt:       expirePtr,
		TotalDays:      order.Days,
		QuotaGB:        order.QuotaGB,
		UsedGB:         usedGB,
	})

	if err := s.provisioning.Delete(ctx, order.ExternalUsername); err != nil {
		s.log.Warn("remote delete failed, continuing teardown",
			zap.String("username", order.ExternalUsername),
			zap.Error(err),
		)
	}

	var deleted *domain.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrOrderNotFound
		}
		if locked.Status == domain.OrderStatusDeleted {
			return domain.ErrOrderAlreadyDeleted
		}

		if err := s.orders.UpdateStatus(ctx, tx, orderID, domain.OrderStatusDeleted, &now, now); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if err := s.orders.UpdateSnapshotStatus(ctx, tx, orderID, domain.RemoteStatusDisabled); err != nil {
			return fmt.Errorf("update snapshot status: %w", err)
		}
		if eligible && amount.IsPositive() {
			if _, err := s.wallet.RefundTx(ctx, tx, locked.AccountID, amount, orderID, "Order deleted - prorated refund"); err != nil {
				return err
			}
		}

		locked.Status = domain.OrderStatusDeleted
		locked.DeletedAt = &now
		locked.UpdatedAt = now
		deleted = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order deleted",
		zap.Int64("order_id", int64(orderID)),
		zap.String("refund", amount.String()),
		zap.Bool("refund_eligible", eligible),
	)
	return deleted, nil
}

func (s *service) Disable(ctx context.Context, orderID snowflake.ID, reason string) error {
	order, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusActive {
		return domain.ErrOrderNotActive
	}

	if err := s.provisioning.Disable(ctx, order.ExternalUsername); err != nil && !errors.Is(err, provisioning.ErrNotFound) {
		s.log.Warn("remote disable failed, continuing",
			zap.String("username", order.ExternalUsername),
			zap.Error(err),
		)
	}

	now := s.clock.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrOrderNotFound
		}
		if locked.Status != domain.OrderStatusActive {
			return domain.ErrOrderNotActive
		}

		if err := s.orders.UpdateStatus(ctx, tx, orderID, domain.OrderStatusDisabled, nil, now); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if err := s.orders.UpdateSnapshotStatus(ctx, tx, orderID, domain.RemoteStatusDisabled); err != nil {
			return fmt.Errorf("update snapshot status: %w", err)
		}
		if _, err := s.wallet.RecordDisableTx(ctx, tx, locked.AccountID, orderID, reason); err != nil {
			return err
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, orderID snowflake.ID) (*OrderDetail, error) {
	order, err := s.orders.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	snap, err := s.orders.FindSnapshot(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Snapshot: snap}, nil
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, s.db, filter)
}
