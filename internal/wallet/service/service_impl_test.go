package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/lvlrf/radpanel/internal/clock"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, name string) (walletdomain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:wallet_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(strings.ReplaceAll(sql, "FOR UPDATE", ""))
		}
	})
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(strings.ReplaceAll(sql, "FOR UPDATE", ""))
		}
	})

	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&walletdomain.Transaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
	})
	return svc, db, fc, node
}

func seedAccount(t *testing.T, db *gorm.DB, node *snowflake.Node, kind accountdomain.AccountKind, confirmed, pending string) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, db.Create(&accountdomain.Account{
		ID:              id,
		Name:            "acct-" + id.String(),
		Kind:            kind,
		CreditConfirmed: mustDec(confirmed),
		CreditPending:   mustDec(pending),
		Status:          accountdomain.AccountStatusActive,
	}).Error)
	return id
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestWallet_PendingLifecycle(t *testing.T) {
	svc, db, _, node := newTestService(t, "pending_lifecycle")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "0", "0")
	paymentID := node.Generate()

	// 1. Receipt uploaded: pending goes up, confirmed untouched.
	tx1, err := svc.CreditPending(ctx, acctID, mustDec("50000"), paymentID)
	require.NoError(t, err)
	assert.Equal(t, walletdomain.KindPendingCharge, tx1.Kind)
	assert.True(t, tx1.Amount.Equal(mustDec("50000")))
	assert.True(t, tx1.BalanceBefore.Equal(decimal.Zero))
	assert.True(t, tx1.BalanceAfter.Equal(mustDec("50000")))

	bal, err := svc.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.Equal(decimal.Zero))
	assert.True(t, bal.Pending.Equal(mustDec("50000")))

	// 2. Approval moves the amount across tiers, total unchanged.
	admin := walletdomain.ByUser(node.Generate())
	tx2, err := svc.ConfirmPending(ctx, acctID, mustDec("50000"), paymentID, admin, "")
	require.NoError(t, err)
	assert.Equal(t, walletdomain.KindApproveCharge, tx2.Kind)
	assert.True(t, tx2.BalanceBefore.Equal(mustDec("50000")))
	assert.True(t, tx2.BalanceAfter.Equal(mustDec("50000")))
	require.NotNil(t, tx2.ActorID)
	assert.Equal(t, *admin.ID, *tx2.ActorID)

	bal, err = svc.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.Equal(mustDec("50000")))
	assert.True(t, bal.Pending.Equal(decimal.Zero))
	assert.True(t, bal.Total.Equal(mustDec("50000")))
}

func TestWallet_RejectPending_NegativeWindow(t *testing.T) {
	svc, db, fc, node := newTestService(t, "reject_negative")
	ctx := context.Background()

	// Agent already spent against pending credit.
	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "0", "20000")
	orderID := node.Generate()
	_, err := svc.Deduct(ctx, acctID, mustDec("15000"), orderID)
	require.NoError(t, err)

	// Rejection pushes total below zero: negativeSince stamps now.
	paymentID := node.Generate()
	tx, err := svc.RejectPending(ctx, acctID, mustDec("20000"), paymentID, walletdomain.ByUser(node.Generate()), "fake receipt")
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(mustDec("-20000")))
	assert.True(t, tx.BalanceAfter.Equal(mustDec("-15000")))

	var acct accountdomain.Account
	require.NoError(t, db.First(&acct, "id = ?", acctID).Error)
	require.NotNil(t, acct.NegativeSince)
	assert.Equal(t, fc.Now(), acct.NegativeSince.UTC())

	// Window start does not move while the balance stays negative.
	first := *acct.NegativeSince
	fc.Advance(3 * time.Hour)
	_, err = svc.ManualAdjust(ctx, acctID, mustDec("1000"), walletdomain.System, "partial top-up")
	require.NoError(t, err)
	require.NoError(t, db.First(&acct, "id = ?", acctID).Error)
	require.NotNil(t, acct.NegativeSince)
	assert.Equal(t, first.UTC(), acct.NegativeSince.UTC())

	// Returning to a non-negative total clears it.
	_, err = svc.ManualAdjust(ctx, acctID, mustDec("14000"), walletdomain.System, "settle debt")
	require.NoError(t, err)
	// Fresh struct: gorm leaves a reused destination's pointer fields stale
	// when the column comes back NULL.
	var cleared accountdomain.Account
	require.NoError(t, db.First(&cleared, "id = ?", acctID).Error)
	assert.Nil(t, cleared.NegativeSince)
}

func TestWallet_CustomerNeverEntersNegativeWindow(t *testing.T) {
	svc, db, _, node := newTestService(t, "customer_negative")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindCustomer, "0", "5000")
	_, err := svc.RejectPending(ctx, acctID, mustDec("8000"), node.Generate(), walletdomain.System, "")
	require.NoError(t, err)

	var acct accountdomain.Account
	require.NoError(t, db.First(&acct, "id = ?", acctID).Error)
	assert.True(t, acct.TotalCredit().Equal(mustDec("-3000")))
	assert.Nil(t, acct.NegativeSince)
}

func TestWallet_DeductConfirmedFirst(t *testing.T) {
	svc, db, _, node := newTestService(t, "deduct_order")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "50000", "100000")

	tx, err := svc.Deduct(ctx, acctID, mustDec("80000"), node.Generate())
	require.NoError(t, err)
	assert.Equal(t, walletdomain.KindOrderCreate, tx.Kind)
	assert.True(t, tx.Amount.Equal(mustDec("-80000")))

	bal, err := svc.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.Equal(decimal.Zero), "confirmed drained first, got %s", bal.Confirmed)
	assert.True(t, bal.Pending.Equal(mustDec("70000")))
}

func TestWallet_DeductInsufficientLeavesNoTrace(t *testing.T) {
	svc, db, _, node := newTestService(t, "deduct_insufficient")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "1000", "500")

	_, err := svc.Deduct(ctx, acctID, mustDec("2000"), node.Generate())
	require.ErrorIs(t, err, walletdomain.ErrInsufficientCredit)

	bal, err := svc.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.Equal(mustDec("1000")))
	assert.True(t, bal.Pending.Equal(mustDec("500")))

	var count int64
	require.NoError(t, db.Model(&walletdomain.Transaction{}).Where("account_id = ?", acctID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWallet_BalanceChainHoldsAcrossOperations(t *testing.T) {
	svc, db, fc, node := newTestService(t, "chain")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "0", "0")
	paymentID := node.Generate()
	orderID := node.Generate()

	steps := []func() error{
		func() error { _, err := svc.CreditPending(ctx, acctID, mustDec("100000"), paymentID); return err },
		func() error {
			_, err := svc.ConfirmPending(ctx, acctID, mustDec("100000"), paymentID, walletdomain.System, "")
			return err
		},
		func() error { _, err := svc.Deduct(ctx, acctID, mustDec("30000"), orderID); return err },
		func() error { _, err := svc.Refund(ctx, acctID, mustDec("7500"), orderID, "plan refund"); return err },
		func() error {
			_, err := svc.ManualAdjust(ctx, acctID, mustDec("-2500"), walletdomain.ByUser(node.Generate()), "correction")
			return err
		},
		func() error { _, err := svc.RecordDisableTx(ctx, db, acctID, orderID, "negative credit"); return err },
	}
	for i, step := range steps {
		fc.Advance(time.Minute)
		require.NoError(t, step(), "step %d", i)
	}

	var entries []walletdomain.Transaction
	require.NoError(t, db.
		Where("account_id = ?", acctID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error)
	require.Len(t, entries, len(steps))

	for i, e := range entries {
		assert.True(t, e.BalanceAfter.Equal(e.BalanceBefore.Add(e.Amount)),
			"entry %d: %s + %s != %s", i, e.BalanceBefore, e.Amount, e.BalanceAfter)
		if i > 0 {
			assert.True(t, e.BalanceBefore.Equal(entries[i-1].BalanceAfter),
				"entry %d does not chain from entry %d", i, i-1)
		}
	}

	// The audit-only entry moves nothing.
	last := entries[len(entries)-1]
	assert.Equal(t, walletdomain.KindOrderDisable, last.Kind)
	assert.True(t, last.Amount.IsZero())

	bal, err := svc.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(last.BalanceAfter))
}

func TestWallet_InvalidAmounts(t *testing.T) {
	svc, db, _, node := newTestService(t, "invalid_amounts")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "1000", "0")

	_, err := svc.CreditPending(ctx, acctID, decimal.Zero, node.Generate())
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	_, err = svc.Deduct(ctx, acctID, mustDec("-10"), node.Generate())
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	_, err = svc.ManualAdjust(ctx, acctID, decimal.Zero, walletdomain.System, "noop")
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	_, err = svc.Refund(ctx, node.Generate(), mustDec("10"), node.Generate(), "")
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}

func TestWallet_ListTransactions(t *testing.T) {
	svc, db, _, node := newTestService(t, "list_tx")
	ctx := context.Background()

	acctID := seedAccount(t, db, node, accountdomain.AccountKindAgent, "0", "0")
	for i := 0; i < 5; i++ {
		_, err := svc.CreditPending(ctx, acctID, mustDec("1000"), node.Generate())
		require.NoError(t, err)
	}
	_, err := svc.ManualAdjust(ctx, acctID, mustDec("500"), walletdomain.System, "bonus")
	require.NoError(t, err)

	resp, err := svc.ListTransactions(ctx, walletdomain.ListTransactionsRequest{AccountID: acctID})
	require.NoError(t, err)
	assert.EqualValues(t, 6, resp.Total)
	assert.Len(t, resp.Transactions, 6)

	resp, err = svc.ListTransactions(ctx, walletdomain.ListTransactionsRequest{
		AccountID: acctID,
		Kind:      walletdomain.KindManualAdjustment,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Total)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, walletdomain.KindManualAdjustment, resp.Transactions[0].Kind)
}
