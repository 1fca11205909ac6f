package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/storage"
)

// CacheJanitor deletes expired transaction cache entries.
type CacheJanitor struct {
	store    storage.Store
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	loop     periodic
}

func NewCacheJanitor(store storage.Store, interval time.Duration, log *zap.Logger, m *metrics.Metrics) *CacheJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CacheJanitor{store: store, interval: interval, log: log.Named("janitor"), metrics: m, now: time.Now}
}

// WithClock replaces the janitor's clock.
func (j *CacheJanitor) WithClock(now func() time.Time) *CacheJanitor {
	j.now = now
	return j
}

func (j *CacheJanitor) Start(ctx context.Context) {
	j.loop.start(ctx, j.interval, func(ctx context.Context) {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error("transaction cleanup failed", zap.Error(err))
		}
	})
}

func (j *CacheJanitor) Stop() {
	j.loop.stop()
}

// RunOnce purges expired entries and returns how many were removed.
func (j *CacheJanitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.store.DeleteExpiredTransactions(ctx, j.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.metrics.CacheEvicted(n)
		j.log.Debug("expired transactions removed", zap.Int64("count", n))
	}
	return n, nil
}
