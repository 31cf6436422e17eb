package maintenance

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/taskflow/pkg/logger"
	"github.com/charlesng35/taskflow/pkg/metrics"
)

const (
	defaultRetentionDays = 30
	defaultCleanupSpec   = "@daily"
	defaultCacheSpec     = "@hourly"
)

// RetentionCleaner removes read notifications older than a number of days.
type RetentionCleaner interface {
	CleanupOlderThan(ctx context.Context, days int) (int64, error)
}

// OverdueSweeper reminds assignees of tasks past their due date.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// ExpiredPurger drops expired cache entries.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background jobs: notification retention, the optional
// overdue sweep and purging of expired cache entries.
type Cleaner struct {
	retention RetentionCleaner
	overdue   OverdueSweeper
	cache     ExpiredPurger
	cron      *cron.Cron
	log       *zap.Logger
	days      int

	cleanupSchedule string
	overdueSchedule string
	cacheSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithRetentionDays adjusts how long read notifications are kept.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.days = days
		}
	}
}

// WithCleanupSchedule overrides the cron specification for notification retention.
func WithCleanupSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cleanupSchedule = spec
		}
	}
}

// WithOverdueSchedule enables the overdue sweep on the given cron specification.
// The sweep is off while the specification is empty.
func WithOverdueSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		cleaner.overdueSchedule = spec
	}
}

// WithOverdueSweeper registers the component that performs the overdue sweep.
func WithOverdueSweeper(sweeper OverdueSweeper) Option {
	return func(cleaner *Cleaner) {
		cleaner.overdue = sweeper
	}
}

// WithCachePurger registers a cache whose expired entries are purged hourly.
func WithCachePurger(purger ExpiredPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(retention RetentionCleaner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		retention:       retention,
		days:            defaultRetentionDays,
		cleanupSchedule: defaultCleanupSpec,
		cacheSchedule:   defaultCacheSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the enabled jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := 0

	if c.retention != nil {
		if _, err := c.cron.AddFunc(c.cleanupSchedule, func() {
			_ = c.cleanupNotifications(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule notification cleanup: %w", err)
		}
		jobs++
	}

	if c.overdue != nil && c.overdueSchedule != "" {
		if _, err := c.cron.AddFunc(c.overdueSchedule, func() {
			_ = c.sweepOverdue(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule overdue sweep: %w", err)
		}
		jobs++
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			_ = c.purgeCache(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule cache purge: %w", err)
		}
		jobs++
	}

	if jobs == 0 {
		return nil
	}

	c.cron.Start()
	c.log.Info("maintenance jobs scheduled", zap.Int("jobs", jobs))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the retention and cache jobs sequentially. The overdue
// sweep is excluded so shutdown never sends reminders.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.retention != nil {
		errs = multierr.Append(errs, c.cleanupNotifications(ctx))
	}
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	return errs
}

func (c *Cleaner) cleanupNotifications(ctx context.Context) error {
	removed, err := c.retention.CleanupOlderThan(ctx, c.days)
	if err != nil {
		c.log.Warn("notification cleanup failed", zap.Error(err))
		return fmt.Errorf("notification cleanup: %w", err)
	}
	metrics.MaintenanceRemoved.WithLabelValues("notifications").Add(float64(removed))
	if removed > 0 {
		c.log.Info("notification cleanup", zap.Int64("removed", removed), zap.Int("retention_days", c.days))
	}
	return nil
}

func (c *Cleaner) sweepOverdue(ctx context.Context) error {
	notified, err := c.overdue.SweepOverdue(ctx)
	if err != nil {
		c.log.Warn("overdue sweep failed", zap.Int("notified", notified), zap.Error(err))
		return fmt.Errorf("overdue sweep: %w", err)
	}
	if notified > 0 {
		c.log.Info("overdue sweep", zap.Int("notified", notified))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		c.log.Warn("cache purge failed", zap.Error(err))
		return fmt.Errorf("cache purge: %w", err)
	}
	metrics.MaintenanceRemoved.WithLabelValues("cache").Add(float64(removed))
	return nil
}
