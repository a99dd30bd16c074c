package scheduler

import (
	"time"

	"github.com/lvlrf/radpanel/internal/config"
)

// Config controls scheduler intervals, batch sizes and enforcement policy.
type Config struct {
	TickInterval     time.Duration
	EnforceInterval  time.Duration
	SyncInterval     time.Duration
	CleanupInterval  time.Duration
	BatchSize        int
	GracePeriod      time.Duration
	UploadsDir       string
	UploadsRetention time.Duration
	JobTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Minute,
		EnforceInterval:  time.Hour,
		SyncInterval:     2 * time.Hour,
		CleanupInterval:  24 * time.Hour,
		BatchSize:        50,
		GracePeriod:      24 * time.Hour,
		UploadsRetention: 30 * 24 * time.Hour,
		JobTimeout:       5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.EnforceInterval <= 0 {
		c.EnforceInterval = defaults.EnforceInterval
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaults.GracePeriod
	}
	if c.UploadsRetention <= 0 {
		c.UploadsRetention = defaults.UploadsRetention
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(app config.Config) Config {
	return Config{
		TickInterval:     app.Scheduler.TickInterval,
		EnforceInterval:  app.Scheduler.EnforceInterval,
		SyncInterval:     app.Scheduler.SyncInterval,
		CleanupInterval:  app.Scheduler.CleanupInterval,
		BatchSize:        app.Scheduler.BatchSize,
		GracePeriod:      app.Scheduler.GracePeriod,
		UploadsDir:       app.Uploads.Dir,
		UploadsRetention: app.Scheduler.UploadsRetention,
	}.withDefaults()
}
