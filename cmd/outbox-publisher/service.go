package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
	"github.com/shopzen/shopzen-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	dlqReasonNonRetryable = "non_retryable"
	dlqReasonMaxAttempts  = "max_attempts"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// sink is a message transport; Pub/Sub and Kafka both satisfy it.
type sink interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, data []byte, attrs map[string]string) error
}

type outboxRepository interface {
	FetchUnpublishedForUpdate(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminal(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	SinkName   string
	Repository outboxRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox rows in batches. Each batch runs in one transaction
// holding row locks, so concurrent publishers never send the same row twice.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	sink        sink
	sinkName    string
	registry    registryResolver
	metrics     *metrics.OutboxMetrics
	dlqTopic    string
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Sink == nil:
		return nil, errors.New("publish sink is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	cfg := p.Config.Outbox
	s := &Service{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		sink:        p.Sink,
		sinkName:    p.SinkName,
		registry:    p.Registry,
		metrics:     p.Metrics,
		dlqTopic:    p.Config.PubSub.DLQTopic,
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	if s.sinkName == "" {
		s.sinkName = "pubsub"
	}
	return s, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run pings both ends, then loops until ctx is cancelled. A full batch is
// followed immediately by the next; an empty one waits one poll interval;
// a failed one backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, s.sinkName: s.sink.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	backoff := s.poll
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.metrics.BatchError()
			s.logg.Error(ctx, "outbox.batch_failed", err)
			backoff = nextBackoff(backoff, s.poll, maxBackoff)
			wait = backoff
		case processed:
			backoff = s.poll
			continue
		default:
			backoff = s.poll
			wait = s.poll
		}
		if err := sleepCtx(ctx, wait+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// processBatch reports whether any row was fetched. Only storage and
// dead-letter write failures abort the batch; publish failures are recorded
// per row.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var processed bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForUpdate(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.handle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"sink":          s.sinkName,
	})

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, dlqReasonNonRetryable, err)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"topic":    resolved.Descriptor.Topic,
		"event_id": resolved.Envelope.EventID,
	})

	attrs := messageAttributes(event)
	attrs["event_id"] = resolved.Envelope.EventID
	if err := s.publish(ctx, resolved.Descriptor.Topic, event, attrs); err != nil {
		if event.AttemptCount+1 >= s.maxAttempts {
			return s.deadLetter(ctx, tx, event, dlqReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
		}
		s.logg.WarnErr(ctx, "outbox.publish_retry", err)
		s.metrics.Event(string(event.EventType), metrics.OutboxRetry, 0)
		if err := s.repo.MarkFailed(tx, event.ID, err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		return nil
	}

	now := s.now().UTC()
	if err := s.repo.MarkPublished(tx, event.ID, now); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.metrics.Event(string(event.EventType), metrics.OutboxPublished, now.Sub(event.CreatedAt))
	s.logg.Debug(ctx, "outbox.published")
	return nil
}

// deadLetter forwards the raw row to the DLQ topic, when one is configured,
// and parks it. A failed DLQ write leaves the row fetchable and aborts the
// batch.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, cause error) error {
	ctx = s.logg.WithField(ctx, "dlq_reason", reason)
	s.logg.WarnErr(ctx, "outbox.dead_letter", cause)

	if s.dlqTopic != "" {
		attrs := messageAttributes(event)
		attrs["error_reason"] = reason
		attrs["error_message"] = cause.Error()
		if err := s.publish(ctx, s.dlqTopic, event, attrs); err != nil {
			return fmt.Errorf("publish dlq %s: %w", event.ID, err)
		}
	}
	if err := s.repo.MarkTerminal(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Event(string(event.EventType), metrics.OutboxDeadLettered, 0)
	return nil
}

// publish keys messages by aggregate id so one order's events stay ordered
// on partitioned sinks.
func (s *Service) publish(ctx context.Context, topic string, event models.OutboxEvent, attrs map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.sink.Publish(ctx, topic, event.AggregateID.String(), event.Payload, attrs)
}

func messageAttributes(event models.OutboxEvent) map[string]string {
	return map[string]string{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}
