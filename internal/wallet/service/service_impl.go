package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/metrics"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/lvlrf/radpanel/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p Params) walletdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("wallet.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// posting describes a single ledger write computed under the account lock.
// logAmount is the signed figure recorded on the transaction; the deltas are
// applied to the two credit tiers.
type posting struct {
	logAmount decimal.Decimal
	confirmed decimal.Decimal
	pending   decimal.Decimal
	notes     string
}

func (s *Service) CreditPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID) (*walletdomain.Transaction, error) {
	return s.CreditPendingTx(ctx, nil, accountID, amount, paymentID)
}

func (s *Service) CreditPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID) (*walletdomain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}
	return s.post(ctx, tx, accountID, walletdomain.KindPendingCharge, ref(walletdomain.ReferencePayment, paymentID), walletdomain.System,
		func(acct *accountdomain.Account) (posting, error) {
			return posting{
				logAmount: amount,
				confirmed: acct.CreditConfirmed,
				pending:   acct.CreditPending.Add(amount),
				notes:     "Receipt uploaded - awaiting approval",
			}, nil
		})
}

func (s *Service) ConfirmPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*walletdomain.Transaction, error) {
	return s.ConfirmPendingTx(ctx, nil, accountID, amount, paymentID, actor, notes)
}

func (s *Service) ConfirmPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*walletdomain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}
	if notes == "" {
		notes = "Payment approved"
	}
	return s.post(ctx, tx, accountID, walletdomain.KindApproveCharge, ref(walletdomain.ReferencePayment, paymentID), actor,
		func(acct *accountdomain.Account) (posting, error) {
			// Pending may go negative here when an approval exceeds what was
			// provisionally credited; the original panel behaves the same way.
			return posting{
				logAmount: amount,
				confirmed: acct.CreditConfirmed.Add(amount),
				pending:   acct.CreditPending.Sub(amount),
				notes:     notes,
			}, nil
		})
}

func (s *Service) RejectPending(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*walletdomain.Transaction, error) {
	return s.RejectPendingTx(ctx, nil, accountID, amount, paymentID, actor, notes)
}

func (s *Service) RejectPendingTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, paymentID snowflake.ID, actor walletdomain.Actor, notes string) (*walletdomain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}
	return s.post(ctx, tx, accountID, walletdomain.KindRejectCharge, ref(walletdomain.ReferencePayment, paymentID), actor,
		func(acct *accountdomain.Account) (posting, error) {
			return posting{
				logAmount: amount.Neg(),
				confirmed: acct.CreditConfirmed,
				pending:   acct.CreditPending.Sub(amount),
				notes:     notes,
			}, nil
		})
}

func (s *Service) ManualAdjust(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, actor walletdomain.Actor, notes string) (*walletdomain.Transaction, error) {
	if amount.IsZero() {
		return nil, walletdomain.ErrInvalidAmount
	}
	return s.post(ctx, nil, accountID, walletdomain.KindManualAdjustment, ref(walletdomain.ReferenceManual, 0), actor,
		func(acct *accountdomain.Account) (posting, error) {
			return posting{
				logAmount: amount,
				confirmed: acct.CreditConfirmed.Add(amount),
				pending:   acct.CreditPending,
				notes:     notes,
			}, nil
		})
}

func (s *Service) Deduct(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID) (*walletdomain.Transaction, error) {
	return s.DeductTx(ctx, nil, accountID, amount, orderID)
}

func (s *Service) DeductTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID) (*walletdomain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}
	return s.post(ctx, tx, accountID, walletdomain.KindOrderCreate, ref(walletdomain.ReferenceOrder, orderID), walletdomain.System,
		func(acct *accountdomain.Account) (posting, error) {
			if acct.TotalCredit().LessThan(amount) {
				return posting{}, walletdomain.ErrInsufficientCredit
			}
			// Confirmed credit covers the purchase first; any shortfall comes
			// out of pending, which is allowed to go negative.
			confirmed := acct.CreditConfirmed.Sub(amount)
			pending := acct.CreditPending
			if confirmed.IsNegative() {
				pending = pending.Add(confirmed)
				confirmed = decimal.Zero
			}
			return posting{
				logAmount: amount.Neg(),
				confirmed: confirmed,
				pending:   pending,
				notes:     "Order created",
			}, nil
		})
}

func (s *Service) Refund(ctx context.Context, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID, notes string) (*walletdomain.Transaction, error) {
	return s.RefundTx(ctx, nil, accountID, amount, orderID, notes)
}

func (s *Service) RefundTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, amount decimal.Decimal, orderID snowflake.ID, notes string) (*walletdomain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, walletdomain.ErrInvalidAmount
	}
	return s.post(ctx, tx, accountID, walletdomain.KindOrderRefund, ref(walletdomain.ReferenceOrder, orderID), walletdomain.System,
		func(acct *accountdomain.Account) (posting, error) {
			return posting{
				logAmount: amount,
				confirmed: acct.CreditConfirmed.Add(amount),
				pending:   acct.CreditPending,
				notes:     notes,
			}, nil
		})
}

func (s *Service) RecordDisableTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, orderID snowflake.ID, notes string) (*walletdomain.Transaction, error) {
	// Zero-amount audit entry: enforcement never moves money but the trail
	// must show why the resource went dark.
	return s.post(ctx, tx, accountID, walletdomain.KindOrderDisable, ref(walletdomain.ReferenceOrder, orderID), walletdomain.System,
		func(acct *accountdomain.Account) (posting, error) {
			return posting{
				logAmount: decimal.Zero,
				confirmed: acct.CreditConfirmed,
				pending:   acct.CreditPending,
				notes:     notes,
			}, nil
		})
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (walletdomain.Balance, error) {
	var acct accountdomain.Account
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, credit_confirmed, credit_pending FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&acct).Error
	if err != nil {
		return walletdomain.Balance{}, err
	}
	if acct.ID == 0 {
		return walletdomain.Balance{}, accountdomain.ErrAccountNotFound
	}
	return walletdomain.Balance{
		Confirmed: acct.CreditConfirmed,
		Pending:   acct.CreditPending,
		Total:     acct.TotalCredit(),
	}, nil
}

func (s *Service) ListTransactions(ctx context.Context, req walletdomain.ListTransactionsRequest) (walletdomain.ListTransactionsResponse, error) {
	page := req.Pagination.Normalize()

	where := `account_id = ?`
	args := []any{req.AccountID}
	if req.Kind != "" {
		where += ` AND kind = ?`
		args = append(args, req.Kind)
	}

	var total int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM transactions WHERE `+where, args...,
	).Scan(&total).Error; err != nil {
		return walletdomain.ListTransactionsResponse{}, err
	}

	var items []walletdomain.Transaction
	query := fmt.Sprintf(
		`SELECT id, account_id, kind, amount, balance_before, balance_after,
		 reference_kind, reference_id, notes, actor_id, created_at
		 FROM transactions WHERE %s
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, page.PageSize, page.Offset())
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return walletdomain.ListTransactionsResponse{}, err
	}

	return walletdomain.ListTransactionsResponse{
		PageInfo:     pagination.PageInfo{Page: page.Page, PageSize: page.PageSize, Total: total},
		Transactions: items,
	}, nil
}

// post executes one ledger write: lock the account row, let fn compute the
// posting from the locked balances, persist the new balances together with
// the transaction record, and maintain negativeSince.
func (s *Service) post(
	ctx context.Context,
	tx *gorm.DB,
	accountID snowflake.ID,
	kind walletdomain.TransactionKind,
	reference reference,
	actor walletdomain.Actor,
	fn func(acct *accountdomain.Account) (posting, error),
) (*walletdomain.Transaction, error) {
	var record *walletdomain.Transaction

	run := func(tx *gorm.DB) error {
		acct, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		before := acct.TotalCredit()
		p, err := fn(acct)
		if err != nil {
			return err
		}

		after := p.confirmed.Add(p.pending)
		now := s.clock.Now()

		negativeSince := acct.NegativeSince
		if after.IsNegative() {
			if negativeSince == nil && acct.Kind.EnforcesGracePeriod() {
				ts := now
				negativeSince = &ts
			}
		} else {
			negativeSince = nil
		}

		if err := tx.WithContext(ctx).Exec(
			`UPDATE accounts
			 SET credit_confirmed = ?, credit_pending = ?, negative_since = ?, updated_at = ?
			 WHERE id = ?`,
			p.confirmed,
			p.pending,
			negativeSince,
			now,
			acct.ID,
		).Error; err != nil {
			return fmt.Errorf("update account balance: %w", err)
		}

		entry := &walletdomain.Transaction{
			ID:            s.genID.Generate(),
			AccountID:     acct.ID,
			Kind:          kind,
			Amount:        p.logAmount,
			BalanceBefore: before,
			BalanceAfter:  after,
			ReferenceKind: reference.kind,
			ReferenceID:   reference.id,
			Notes:         p.notes,
			ActorID:       actor.ID,
			CreatedAt:     now,
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO transactions (
				id, account_id, kind, amount, balance_before, balance_after,
				reference_kind, reference_id, notes, actor_id, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.AccountID,
			string(entry.Kind),
			entry.Amount,
			entry.BalanceBefore,
			entry.BalanceAfter,
			entry.ReferenceKind,
			entry.ReferenceID,
			entry.Notes,
			entry.ActorID,
			entry.CreatedAt,
		).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		record = entry
		return nil
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncTransaction(string(kind))
	}
	return record, nil
}

func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*accountdomain.Account, error) {
	var acct accountdomain.Account
	err := tx.WithContext(ctx).Raw(
		`SELECT id, name, kind, credit_confirmed, credit_pending, negative_since, status, created_at, updated_at
		 FROM accounts WHERE id = ?
		 FOR UPDATE`,
		accountID,
	).Scan(&acct).Error
	if err != nil {
		return nil, err
	}
	if acct.ID == 0 {
		return nil, accountdomain.ErrAccountNotFound
	}
	return &acct, nil
}

type reference struct {
	kind *walletdomain.ReferenceKind
	id   *snowflake.ID
}

func ref(kind walletdomain.ReferenceKind, id snowflake.ID) reference {
	r := reference{kind: &kind}
	if id != 0 {
		r.id = &id
	}
	return r
}
