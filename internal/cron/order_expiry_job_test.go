package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
)

type fakeExpirer struct {
	cutoff  time.Time
	limit   int
	expired int
	err     error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.expired, f.err
}

func TestOrderExpiryJobUsesTTLCutoff(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: 3}
	job := newOrderExpiryJob(t, expirer, 48*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !expirer.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoff)
	}
	if expirer.limit != 25 {
		t.Fatalf("expected batch 25, got %d", expirer.limit)
	}
}

func TestOrderExpiryJobDefaults(t *testing.T) {
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: &fakeExpirer{},
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job := jobIface.(*orderExpiryJob)
	if job.ttl != defaultPendingOrderTTL {
		t.Fatalf("expected default ttl, got %v", job.ttl)
	}
	if job.batch != defaultExpireBatchSize {
		t.Fatalf("expected default batch %d, got %d", defaultExpireBatchSize, job.batch)
	}
}

func TestOrderExpiryJobReturnsAggregatedError(t *testing.T) {
	expirer := &fakeExpirer{expired: 1, err: errors.New("order 2: boom")}
	job := newOrderExpiryJob(t, expirer, time.Hour)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, expirer.err) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestOrderExpiryJobRequiresOrders(t *testing.T) {
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error without order service")
	}
}

func newOrderExpiryJob(t *testing.T, expirer *fakeExpirer, ttl time.Duration) *orderExpiryJob {
	t.Helper()
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    expirer,
		Metrics:   metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		TTL:       ttl,
		BatchSize: 25,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job, ok := jobIface.(*orderExpiryJob)
	if !ok {
		t.Fatalf("expected orderExpiryJob, got %T", jobIface)
	}
	return job
}
