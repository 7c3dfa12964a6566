package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 72 * time.Hour
	defaultBatchSize       = 100
	expiryReason           = "payment not received before expiry"
)

// StaleOrderJobParams configure the pending order expiry job.
type StaleOrderJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderFinder
	Canceller orders.Canceller
	TTL       time.Duration
	BatchSize int
}

type staleOrderFinder interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// NewStaleOrderJob builds the job that cancels unpaid orders past their TTL,
// returning their stock through the cancellation engine.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("canceller required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &staleOrderJob{
		logg:      params.Logger,
		orders:    params.Orders,
		canceller: params.Canceller,
		ttl:       ttl,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type staleOrderJob struct {
	logg      *logger.Logger
	orders    staleOrderFinder
	canceller orders.Canceller
	ttl       time.Duration
	batch     int
	now       func() time.Time
}

func (j *staleOrderJob) Name() string { return "stale-order-expiry" }

func (j *staleOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var (
		errs    []error
		expired int
		skipped int
	)
	for _, order := range stale {
		_, err := j.canceller.Cancel(ctx, orders.CancelInput{
			OrderID: order.ID,
			Reason:  expiryReason,
			Origin:  orders.CancelOriginExpiry,
			RequirePaymentStatuses: []enums.PaymentStatus{
				enums.PaymentStatusPending,
				enums.PaymentStatusFailed,
			},
		})
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
			// Paid or cancelled since the query ran.
			skipped++
		default:
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"expired": expired,
		"skipped": skipped,
	})
	j.logg.Info(logCtx, "stale pending orders processed")
	return multierr.Combine(errs...)
}
