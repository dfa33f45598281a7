package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
)

const (
	orderExpiryJobName     = "order-expiry"
	defaultPendingOrderTTL = 24 * time.Hour
	defaultExpireBatchSize = 100
)

// staleOrderExpirer cancels unpaid orders and restores their stock.
type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// OrderExpiryJobParams configure the pending order expiry job.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderExpirer
	Metrics   *metrics.CronJobMetrics
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob builds the job that cancels PENDING orders older than TTL.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpireBatchSize
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	orders  staleOrderExpirer
	metrics *metrics.CronJobMetrics
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return orderExpiryJobName }

// Run expires one batch per cycle. Partial progress is reported even when
// some orders fail.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireStale(ctx, cutoff, j.batch)
	if expired > 0 && j.metrics != nil {
		j.metrics.Affected(orderExpiryJobName, expired)
	}
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"batch_size":     j.batch,
		"orders_expired": expired,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return nil
}
