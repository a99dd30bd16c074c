// Package seed bootstraps the records a fresh deployment needs before the
// first admin logs in.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	paymentdomain "github.com/lvlrf/radpanel/internal/payment/domain"
)

const (
	defaultMethodName = "Card to card"
	defaultMethodKind = "card_to_card"
)

// EnsureDefaults seeds the default payment method so receipt submission
// works out of the box. Safe to call on every startup.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureDefaultMethodTx(ctx, tx, node)
	})
}

func ensureDefaultMethodTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var method paymentdomain.PaymentMethod
	err := tx.WithContext(ctx).Where("kind = ?", defaultMethodKind).First(&method).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	method = paymentdomain.PaymentMethod{
		ID:      node.Generate(),
		Name:    defaultMethodName,
		Kind:    defaultMethodKind,
		Enabled: true,
	}
	return tx.WithContext(ctx).Create(&method).Error
}
