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
	accountrepo "github.com/lvlrf/radpanel/internal/account/repository"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/payment/domain"
	walletdomain "github.com/lvlrf/radpanel/internal/wallet/domain"
	walletservice "github.com/lvlrf/radpanel/internal/wallet/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc    Service
	wallet walletdomain.Service
	db     *gorm.DB
	node   *snowflake.Node
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:payment_%s?mode=memory&cache=shared", name)
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
		&domain.Payment{},
		&domain.PaymentMethod{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC))

	wallet := walletservice.NewService(walletservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
	})

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Wallet:   wallet,
		Accounts: accountrepo.Provide(),
	})

	return &fixture{svc: svc, wallet: wallet, db: db, node: node}
}

func (f *fixture) seedAccount(t *testing.T) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&accountdomain.Account{
		ID:     id,
		Name:   "acct",
		Kind:   accountdomain.AccountKindAgent,
		Status: accountdomain.AccountStatusActive,
	}).Error)
	return id
}

func TestPayment_SubmitCreditsPending(t *testing.T) {
	f := newFixture(t, "submit")
	ctx := context.Background()
	acctID := f.seedAccount(t)

	p, err := f.svc.Submit(ctx, SubmitRequest{
		AccountID:   acctID,
		Amount:      decimal.NewFromInt(50000),
		ReceiptPath: "uploads/receipt-1.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, p.Status)

	bal, err := f.wallet.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Pending.Equal(decimal.NewFromInt(50000)))
	assert.True(t, bal.Confirmed.IsZero())

	var tx walletdomain.Transaction
	require.NoError(t, f.db.First(&tx, "account_id = ?", acctID).Error)
	assert.Equal(t, walletdomain.KindPendingCharge, tx.Kind)
	require.NotNil(t, tx.ReferenceID)
	assert.Equal(t, p.ID, *tx.ReferenceID)
}

func TestPayment_ApproveSettlesCredit(t *testing.T) {
	f := newFixture(t, "approve")
	ctx := context.Background()
	acctID := f.seedAccount(t)

	p, err := f.svc.Submit(ctx, SubmitRequest{AccountID: acctID, Amount: decimal.NewFromInt(50000)})
	require.NoError(t, err)

	admin := walletdomain.ByUser(f.node.Generate())
	reviewed, err := f.svc.Approve(ctx, p.ID, admin, "looks good")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)

	bal, err := f.wallet.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.Equal(decimal.NewFromInt(50000)))
	assert.True(t, bal.Pending.IsZero())

	// A settled payment cannot be reviewed again.
	_, err = f.svc.Approve(ctx, p.ID, admin, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotPending)
	_, err = f.svc.Reject(ctx, p.ID, admin, "")
	assert.ErrorIs(t, err, domain.ErrPaymentNotPending)
}

func TestPayment_RejectReversesCredit(t *testing.T) {
	f := newFixture(t, "reject")
	ctx := context.Background()
	acctID := f.seedAccount(t)

	p, err := f.svc.Submit(ctx, SubmitRequest{AccountID: acctID, Amount: decimal.NewFromInt(30000)})
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, p.ID, walletdomain.ByUser(f.node.Generate()), "unreadable receipt")
	require.NoError(t, err)

	bal, err := f.wallet.Balance(ctx, acctID)
	require.NoError(t, err)
	assert.True(t, bal.Total.IsZero())

	var entries []walletdomain.Transaction
	require.NoError(t, f.db.Where("account_id = ?", acctID).Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, walletdomain.KindRejectCharge, entries[1].Kind)
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(-30000)))
}

func TestPayment_MethodGating(t *testing.T) {
	f := newFixture(t, "methods")
	ctx := context.Background()
	acctID := f.seedAccount(t)

	method := &domain.PaymentMethod{
		Name: "Card to card",
		Kind: "CARD_TO_CARD",
		Config: datatypes.JSONMap{
			"card_number": "6037-0000-0000-0000",
			"holder":      "Panel Admin",
		},
		Enabled: true,
	}
	require.NoError(t, f.svc.CreateMethod(ctx, method))

	_, err := f.svc.Submit(ctx, SubmitRequest{
		AccountID: acctID,
		MethodID:  &method.ID,
		Amount:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetMethodEnabled(ctx, method.ID, false))
	_, err = f.svc.Submit(ctx, SubmitRequest{
		AccountID: acctID,
		MethodID:  &method.ID,
		Amount:    decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, domain.ErrMethodDisabled)

	enabled, err := f.svc.ListMethods(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := f.svc.ListMethods(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	ghost := f.node.Generate()
	assert.ErrorIs(t, f.svc.SetMethodEnabled(ctx, ghost, true), domain.ErrMethodNotFound)
}

func TestPayment_ListFilters(t *testing.T) {
	f := newFixture(t, "list")
	ctx := context.Background()
	acctID := f.seedAccount(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, SubmitRequest{AccountID: acctID, Amount: decimal.NewFromInt(1000)})
		require.NoError(t, err)
	}
	p, err := f.svc.Submit(ctx, SubmitRequest{AccountID: acctID, Amount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, p.ID, walletdomain.System, "")
	require.NoError(t, err)

	pending, total, err := f.svc.List(ctx, ListFilter{AccountID: acctID, Status: domain.PaymentStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, pending, 3)

	approved, total, err := f.svc.List(ctx, ListFilter{AccountID: acctID, Status: domain.PaymentStatusApproved})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, approved, 1)
	assert.Equal(t, p.ID, approved[0].ID)
}
