package order

import (
	"github.com/lvlrf/radpanel/internal/order/repository"
	"github.com/lvlrf/radpanel/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
