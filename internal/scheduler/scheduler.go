// Package scheduler runs the periodic reconciliation loop: negative-credit
// enforcement, external state sync and artifact cleanup. Jobs never overlap
// themselves; per-item failures are logged and skipped so one bad record
// cannot stall a pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	accountdomain "github.com/lvlrf/radpanel/internal/account/domain"
	"github.com/lvlrf/radpanel/internal/clock"
	"github.com/lvlrf/radpanel/internal/metrics"
	orderdomain "github.com/lvlrf/radpanel/internal/order/domain"
	ordersvc "github.com/lvlrf/radpanel/internal/order/service"
	"github.com/lvlrf/radpanel/internal/provisioning"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	jobEnforce = "enforce_negative_credit"
	jobSync    = "sync_external_status"
	jobCleanup = "cleanup_uploads"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Orders       orderdomain.Repository
	Accounts     accountdomain.Repository
	OrderSvc     ordersvc.Service
	Provisioning provisioning.Service
	Metrics      *metrics.Metrics `optional:"true"`
	Locker       *redislock.Client `optional:"true"`
	Config       Config            `optional:"true"`
}

// jobLocker is the subset of redislock.Client the scheduler uses. Tests
// substitute it to drive the held-elsewhere path without a redis.
type jobLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	orders       orderdomain.Repository
	accounts     accountdomain.Repository
	orderSvc     ordersvc.Service
	provisioning provisioning.Service
	metrics      *metrics.Metrics
	locker       jobLocker

	mu      sync.Mutex
	running map[string]bool
	lastRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Orders == nil || p.Accounts == nil || p.OrderSvc == nil || p.Provisioning == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		orders:       p.Orders,
		accounts:     p.Accounts,
		orderSvc:     p.OrderSvc,
		provisioning: p.Provisioning,
		metrics:      p.Metrics,
		running:      map[string]bool{},
		lastRun:      map[string]time.Time{},
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

// runJob executes one job if its interval has elapsed and no instance of it
// is still running. With a redis locker configured the same guard extends
// across processes; a lost or unreachable redis degrades to the local guard.
func (s *Scheduler) runJob(parent context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) error {
	now := s.clock.Now()

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.log.Warn("previous run still active, skipping", zap.String("job", name))
		if s.metrics != nil {
			s.metrics.IncJobSkip(name)
		}
		return nil
	}
	if last, ok := s.lastRun[name]; ok && now.Sub(last) < interval {
		s.mu.Unlock()
		return nil
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[name] = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "radpanel:job:"+name, s.cfg.JobTimeout, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			s.log.Info("job held by another instance, skipping", zap.String("job", name))
			if s.metrics != nil {
				s.metrics.IncJobSkip(name)
			}
			return nil
		}
		if err != nil {
			s.log.Warn("redis lock unavailable, proceeding with local guard only",
				zap.String("job", name),
				zap.Error(err),
			)
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	// The interval is consumed only once the job actually runs, so a pass
	// skipped for a lock held elsewhere is retried on the next tick.
	s.mu.Lock()
	s.lastRun[name] = now
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncJobRun(name)
	}
	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveJobDuration(name, time.Since(start))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncJobError(name)
		}
		s.log.Error("job finished with errors",
			zap.String("job", name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// RunOnce evaluates every job against its interval. Callers drive it from a
// ticker; tests drive it directly with a fake clock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(ctx, jobEnforce, s.cfg.EnforceInterval, s.EnforceNegativeCreditJob))
	err = errors.Join(err, s.runJob(ctx, jobSync, s.cfg.SyncInterval, s.SyncExternalStatusJob))
	err = errors.Join(err, s.runJob(ctx, jobCleanup, s.cfg.CleanupInterval, s.CleanupUploadsJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
