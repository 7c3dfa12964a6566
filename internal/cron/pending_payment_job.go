package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

const defaultPendingEventMaxAttempts = 20

// PendingPaymentJobParams configure the deferred webhook replay job.
type PendingPaymentJobParams struct {
	Logger      *logger.Logger
	Events      pendingEventStore
	Payments    pendingEventApplier
	MaxAttempts int
	BatchSize   int
}

type pendingEventStore interface {
	ListQueued(ctx context.Context, limit int) ([]models.PendingPaymentEvent, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, lastError string, giveUp bool) error
}

type pendingEventApplier interface {
	ApplyPending(ctx context.Context, event models.PendingPaymentEvent) (bool, error)
}

// NewPendingPaymentJob builds the job that replays gateway events whose order
// did not exist when they arrived.
func NewPendingPaymentJob(params PendingPaymentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("pending event store required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultPendingEventMaxAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &pendingPaymentJob{
		logg:        params.Logger,
		events:      params.Events,
		payments:    params.Payments,
		maxAttempts: maxAttempts,
		batch:       batch,
	}, nil
}

type pendingPaymentJob struct {
	logg        *logger.Logger
	events      pendingEventStore
	payments    pendingEventApplier
	maxAttempts int
	batch       int
}

func (j *pendingPaymentJob) Name() string { return "pending-payment-events" }

func (j *pendingPaymentJob) Run(ctx context.Context) error {
	queued, err := j.events.ListQueued(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list pending payment events: %w", err)
	}

	var (
		errs    []error
		applied int
		waiting int
		gaveUp  int
	)
	for _, event := range queued {
		eventCtx := j.logg.WithFields(ctx, map[string]any{
			"event_id":          event.EventID,
			"payment_intent_id": event.PaymentIntentID,
		})
		ok, applyErr := j.payments.ApplyPending(eventCtx, event)
		if ok {
			applied++
			continue
		}

		lastError := "order not found"
		terminal := event.Attempts+1 >= j.maxAttempts
		if applyErr != nil {
			lastError = applyErr.Error()
			if pkgerrors.IsCode(applyErr, pkgerrors.CodeInvalidTransition) {
				terminal = true
			} else {
				errs = append(errs, fmt.Errorf("apply pending event %s: %w", event.EventID, applyErr))
			}
		}
		if err := j.events.RecordAttempt(ctx, event.ID, lastError, terminal); err != nil {
			errs = append(errs, fmt.Errorf("record attempt for %s: %w", event.EventID, err))
			continue
		}
		if terminal {
			gaveUp++
			j.logg.Warn(eventCtx, "pending payment event abandoned: "+lastError)
			continue
		}
		waiting++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"found":    len(queued),
		"applied":  applied,
		"waiting":  waiting,
		"given_up": gaveUp,
	})
	j.logg.Info(logCtx, "pending payment events processed")
	return multierr.Combine(errs...)
}
