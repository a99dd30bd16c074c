package scheduler

import (
	"context"

	"github.com/bsm/redislock"
	"github.com/lvlrf/radpanel/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(Start),
)

// ProvideLocker builds the distributed job guard when redis is configured.
// Without redis the scheduler falls back to its in-process guard only.
func ProvideLocker(cfg config.Config, log *zap.Logger) *redislock.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Named("scheduler").Info("redis job guard enabled", zap.String("addr", cfg.RedisAddr))
	return redislock.New(client)
}

func Start(lc fx.Lifecycle, sched *Scheduler) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go sched.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
