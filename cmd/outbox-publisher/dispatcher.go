package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher sends one message and waits for the server id.
type topicPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type DispatcherParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRepository
	DeadLetters deadLetterRepository
	Resolver    eventResolver
	Publisher   topicPublisher
}

// Dispatcher drains outbox_events into Pub/Sub. Each batch runs inside one
// transaction so the row locks taken by FetchUnpublishedForPublish cover the
// publish and the bookkeeping that follows it.
type Dispatcher struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRepository
	deadLetters deadLetterRepository
	resolver    eventResolver
	publisher   topicPublisher

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	jitter       *rand.Rand
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dead letter repository is required")
	case params.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case params.Publisher == nil:
		return nil, errors.New("publisher is required")
	}

	d := &Dispatcher{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		deadLetters:  params.DeadLetters,
		resolver:     params.Resolver,
		publisher:    params.Publisher,
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	return d, nil
}

// Run polls until ctx is cancelled. A batch error doubles the wait up to
// maxBackoff; a full batch is followed immediately by the next one.
func (d *Dispatcher) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": d.db.Ping,
		"pubsub":   d.publisher.Ping,
	} {
		if err := ping(ctx); err != nil {
			d.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := d.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		processed, err := d.DrainOnce(ctx)
		switch {
		case err != nil:
			d.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, maxBackoff)
		case processed > 0:
			wait = d.pollInterval
			continue
		default:
			wait = d.pollInterval
		}

		if err := d.sleep(ctx, wait+time.Duration(d.jitter.Int63n(int64(jitterWindow)))); err != nil {
			return err
		}
	}
}

// DrainOnce handles a single batch and returns how many rows it touched.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	processed := 0
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := d.repo.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			if _, err := d.dispatch(ctx, tx, event); err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	return processed, err
}

// dispatch publishes one row and records the result. The returned error is a
// bookkeeping failure that aborts the batch; publish failures are recorded on
// the row instead.
func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	})

	resolved, err := d.resolver.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	topic := resolved.Descriptor.Topic
	logCtx = d.logg.WithFields(logCtx, map[string]any{
		"topic":    topic,
		"event_id": resolved.Envelope.EventID,
	})

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	_, err = d.publisher.Publish(publishCtx, topic, buildMessage(event, resolved))
	cancel()
	if err == nil {
		if err := d.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		d.logg.Info(logCtx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	if event.AttemptCount+1 >= d.maxAttempts {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
	if err := d.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return outcomeRetry, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (d *Dispatcher) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "outbox event moved to dead letters")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := d.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dead letter %s: %w", event.ID, err)
	}
	if err := d.repo.MarkTerminalTx(tx, event.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (d *Dispatcher) sleep(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
