package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	orderdomain "github.com/lvlrf/radpanel/internal/order/domain"
	"github.com/lvlrf/radpanel/internal/provisioning"
	"go.uber.org/zap"
)

// EnforceNegativeCreditJob disables every active order of accounts whose
// balance has been negative for longer than the grace period. The grace
// window is measured from negativeSince, which the wallet maintains.
func (s *Scheduler) EnforceNegativeCreditJob(ctx context.Context) error {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.GracePeriod)

	accounts, err := s.accounts.ListNegativeBefore(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, acct := range accounts {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		if !acct.Kind.EnforcesGracePeriod() {
			continue
		}

		orders, err := s.orders.ListActiveByAccount(ctx, s.db, acct.ID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}

		for _, o := range orders {
			if err := s.orderSvc.Disable(ctx, o.ID, "negative credit beyond grace period"); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.log.Warn("enforcement disable failed",
					zap.Int64("account_id", int64(acct.ID)),
					zap.Int64("order_id", int64(o.ID)),
					zap.Error(err),
				)
				continue
			}
			s.log.Info("order disabled by enforcement",
				zap.Int64("account_id", int64(acct.ID)),
				zap.Int64("order_id", int64(o.ID)),
				zap.Time("negative_since", *acct.NegativeSince),
			)
		}
	}
	return jobErr
}

// SyncExternalStatusJob refreshes every still-active snapshot from the
// remote panel: usage, expiry, mapped status. A record missing remotely
// marks the snapshot disabled without touching the order itself.
func (s *Scheduler) SyncExternalStatusJob(ctx context.Context) error {
	now := s.clock.Now()

	resources, err := s.orders.ListActiveResources(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, res := range resources {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		rec, err := s.provisioning.Get(ctx, res.ExternalUsername)
		switch {
		case err == nil:
			sync := orderdomain.SnapshotSync{
				OrderID:      res.OrderID,
				UsedGB:       rec.UsedGB(),
				RemoteStatus: mapRemoteStatus(rec.Status),
				ExpireAt:     rec.ExpireAt,
				SyncedAt:     now,
			}
			if err := s.orders.ApplySnapshotSync(ctx, s.db, sync); err != nil {
				jobErr = errors.Join(jobErr, err)
			}
		case errors.Is(err, provisioning.ErrNotFound):
			snap, findErr := s.orders.FindSnapshot(ctx, s.db, res.OrderID)
			if findErr != nil || snap == nil {
				jobErr = errors.Join(jobErr, findErr)
				continue
			}
			sync := orderdomain.SnapshotSync{
				OrderID:      res.OrderID,
				UsedGB:       snap.UsedGB,
				RemoteStatus: orderdomain.RemoteStatusDisabled,
				ExpireAt:     snap.ExpireAt,
				SyncedAt:     now,
			}
			if err := s.orders.ApplySnapshotSync(ctx, s.db, sync); err != nil {
				jobErr = errors.Join(jobErr, err)
				continue
			}
			s.log.Info("remote record gone, snapshot marked disabled",
				zap.Int64("order_id", int64(res.OrderID)),
				zap.String("username", res.ExternalUsername),
			)
		default:
			if s.metrics != nil {
				s.metrics.IncSyncFailure()
			}
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("sync fetch failed",
				zap.String("username", res.ExternalUsername),
				zap.Error(err),
			)
		}
	}
	return jobErr
}

func mapRemoteStatus(status provisioning.Status) orderdomain.RemoteStatus {
	switch status {
	case provisioning.StatusDisabled:
		return orderdomain.RemoteStatusDisabled
	case provisioning.StatusExpired:
		return orderdomain.RemoteStatusExpired
	case provisioning.StatusLimited:
		return orderdomain.RemoteStatusLimited
	default:
		// on_hold counts as active locally until the clock starts.
		return orderdomain.RemoteStatusActive
	}
}

// CleanupUploadsJob removes receipt files older than the retention window.
// It only touches the uploads directory; accounts, orders and the
// transaction log are out of bounds for this job.
func (s *Scheduler) CleanupUploadsJob(ctx context.Context) error {
	if s.cfg.UploadsDir == "" {
		return nil
	}

	cutoff := s.clock.Now().Add(-s.cfg.UploadsRetention)

	var jobErr error
	removed := 0
	err := filepath.WalkDir(s.cfg.UploadsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			jobErr = errors.Join(jobErr, err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return jobErr
		}
		jobErr = errors.Join(jobErr, err)
	}
	if removed > 0 {
		s.log.Info("stale uploads removed", zap.Int("count", removed))
	}
	return jobErr
}
