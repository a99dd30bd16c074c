package provisioning

import (
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Log    *zap.Logger
}

func New(p Params) Service {
	return NewMarzbanClient(MarzbanConfig{
		BaseURL:  p.Config.Provisioning.BaseURL,
		Username: p.Config.Provisioning.Username,
		Password: p.Config.Provisioning.Password,
		Timeout:  p.Config.Provisioning.Timeout,
	}, p.Clock, p.Log)
}

var Module = fx.Module("provisioning",
	fx.Provide(New),
)
