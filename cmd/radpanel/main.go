package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/lvlrf/radpanel/internal/account"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/config"
	"github.com/lvlrf/radpanel/internal/logger"
	"github.com/lvlrf/radpanel/internal/metrics"
	"github.com/lvlrf/radpanel/internal/migration"
	"github.com/lvlrf/radpanel/internal/order"
	"github.com/lvlrf/radpanel/internal/payment"
	"github.com/lvlrf/radpanel/internal/plan"
	"github.com/lvlrf/radpanel/internal/provisioning"
	"github.com/lvlrf/radpanel/internal/ratelimit"
	"github.com/lvlrf/radpanel/internal/scheduler"
	"github.com/lvlrf/radpanel/internal/seed"
	"github.com/lvlrf/radpanel/internal/server"
	"github.com/lvlrf/radpanel/internal/wallet"
	"github.com/lvlrf/radpanel/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		fx.Invoke(seed.EnsureDefaults),
		metrics.Module,

		// Functional domains
		account.Module,
		wallet.Module,
		plan.Module,
		provisioning.Module,
		order.Module,
		payment.Module,
		ratelimit.Module,
		scheduler.Module,

		server.Module,
	)

	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
