package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/payment/domain"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmitRequest struct {
	AccountID   snowflake.ID
	MethodID    *snowflake.ID
	Amount      decimal.Decimal
	ReceiptPath string
	Notes       string
}

type ListFilter struct {
	AccountID snowflake.ID
	Status    domain.PaymentStatus
	pagination.Pagination
}

// Service owns the receipt review flow. Submitting a payment provisionally
// credits the wallet; review settles or reverses that credit. The payment
// row and the ledger write always commit together.
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*domain.Payment, error)
	Approve(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*domain.Payment, error)
	Reject(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*domain.Payment, error)
	Get(ctx context.Context, paymentID snowflake.ID) (*domain.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Payment, int64, error)

	CreateMethod(ctx context.Context, method *domain.PaymentMethod) error
	ListMethods(ctx context.Context, enabledOnly bool) ([]domain.PaymentMethod, error)
	SetMethodEnabled(ctx context.Context, id snowflake.ID, enabled bool) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Wallet   walletdomain.Service
	Accounts accountdomain.Repository
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	wallet   walletdomain.Service
	accounts accountdomain.Repository
}

func NewService(p Params) Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		wallet:   p.Wallet,
		accounts: p.Accounts,
	}
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*domain.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}

	acct, err := s.accounts.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, accountdomain.ErrAccountNotFound
	}

	if req.MethodID != nil {
		method, err := s.findMethod(ctx, *req.MethodID)
		if err != nil {
			return nil, err
		}
		if !method.Enabled {
			return nil, domain.ErrMethodDisabled
		}
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:          s.genID.Generate(),
		AccountID:   req.AccountID,
		MethodID:    req.MethodID,
		Amount:      req.Amount,
		ReceiptPath: req.ReceiptPath,
		Status:      domain.PaymentStatusPending,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO payments (id, account_id, method_id, amount, receipt_path, status, notes, reviewed_by, reviewed_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			payment.ID,
			payment.AccountID,
			payment.MethodID,
			payment.Amount,
			payment.ReceiptPath,
			string(payment.Status),
			payment.Notes,
			nil,
			nil,
			payment.CreatedAt,
			payment.UpdatedAt,
		).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		_, err := s.wallet.CreditPendingTx(ctx, tx, req.AccountID, req.Amount, payment.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment submitted",
		zap.Int64("payment_id", int64(payment.ID)),
		zap.Int64("account_id", int64(req.AccountID)),
		zap.String("amount", req.Amount.String()),
	)
	return payment, nil
}

func (s *service) Approve(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*domain.Payment, error) {
	return s.review(ctx, paymentID, actor, notes, domain.PaymentStatusApproved)
}

func (s *service) Reject(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*domain.Payment, error) {
	return s.review(ctx, paymentID, actor, notes, domain.PaymentStatusRejected)
}

func (s *service) review(ctx context.Context, paymentID snowflake.ID, actor walletdomain.Actor, notes string, verdict domain.PaymentStatus) (*domain.Payment, error) {
	var reviewed *domain.Payment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			return domain.ErrPaymentNotPending
		}

		now := s.clock.Now()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE payments SET status = ?, notes = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ? WHERE id = ?`,
			string(verdict),
			notes,
			actor.ID,
			now,
			now,
			paymentID,
		).Error; err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		if verdict == domain.PaymentStatusApproved {
			_, err = s.wallet.ConfirmPendingTx(ctx, tx, payment.AccountID, payment.Amount, paymentID, actor, notes)
		} else {
			_, err = s.wallet.RejectPendingTx(ctx, tx, payment.AccountID, payment.Amount, paymentID, actor, notes)
		}
		if err != nil {
			return err
		}

		payment.Status = verdict
		payment.Notes = notes
		payment.ReviewedBy = actor.ID
		payment.ReviewedAt = &now
		payment.UpdatedAt = now
		reviewed = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment reviewed",
		zap.Int64("payment_id", int64(paymentID)),
		zap.String("verdict", string(verdict)),
	)
	return reviewed, nil
}

func (s *service) lockPayment(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*domain.Payment, error) {
	var p domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, account_id, method_id, amount, receipt_path, status, notes, reviewed_by, reviewed_at, created_at, updated_at
		 FROM payments WHERE id = ?
		 FOR UPDATE`,
		paymentID,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (s *service) Get(ctx context.Context, paymentID snowflake.ID) (*domain.Payment, error) {
	var p domain.Payment
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, account_id, method_id, amount, receipt_path, status, notes, reviewed_by, reviewed_at, created_at, updated_at
		 FROM payments WHERE id = ?`,
		paymentID,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]domain.Payment, int64, error) {
	page := filter.Pagination.Normalize()

	stmt := s.db.WithContext(ctx).Model(&domain.Payment{})
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

	var items []domain.Payment
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

func (s *service) CreateMethod(ctx context.Context, method *domain.PaymentMethod) error {
	if method.ID == 0 {
		method.ID = s.genID.Generate()
	}
	now := s.clock.Now()
	method.CreatedAt = now
	method.UpdatedAt = now
	return s.db.WithContext(ctx).Create(method).Error
}

func (s *service) ListMethods(ctx context.Context, enabledOnly bool) ([]domain.PaymentMethod, error) {
	stmt := s.db.WithContext(ctx).Model(&domain.PaymentMethod{})
	if enabledOnly {
		stmt = stmt.Where("enabled = ?", true)
	}
	var items []domain.PaymentMethod
	if err := stmt.Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *service) SetMethodEnabled(ctx context.Context, id snowflake.ID, enabled bool) error {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE payment_methods SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled,
		s.clock.Now(),
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMethodNotFound
	}
	return nil
}

func (s *service) findMethod(ctx context.Context, id snowflake.ID) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, kind, config, enabled, created_at, updated_at FROM payment_methods WHERE id = ?`,
		id,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, domain.ErrMethodNotFound
	}
	return &m, nil
}
