package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

const (
	CancelOriginUser   = "user"
	CancelOriginExpiry = "expiry"

	maxCancellationReasonLength = 500
)

// TransitionDetails is the detail payload attached to INVALID_TRANSITION errors.
type TransitionDetails struct {
	Current   string `json:"current"`
	Requested string `json:"requested"`
}

// InvalidTransition builds the typed error for a disallowed state change.
func InvalidTransition(current, requested string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "state transition disallowed").
		WithDetails(TransitionDetails{Current: current, Requested: requested})
}

// CancelInput describes a cancellation. A nil UserID means a system actor, which
// may cancel any order.
type CancelInput struct {
	OrderID uuid.UUID
	UserID  *uuid.UUID
	Reason  string
	Origin  string
	// RequirePaymentStatuses additionally guards the cancel on the payment state.
	RequirePaymentStatuses []enums.PaymentStatus
}

// Canceller moves orders out of the pipeline and reverses their stock effects.
type Canceller interface {
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

type canceller struct {
	tx      txRunner
	repo    Repository
	ledger  inventory.Ledger
	outbox  outboxPublisher
	metrics checkoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewCanceller builds the cancellation engine.
func NewCanceller(tx txRunner, repo Repository, ledger inventory.Ledger, publisher outboxPublisher, metrics checkoutMetrics, logg *logger.Logger) (Canceller, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &canceller{
		tx:      tx,
		repo:    repo,
		ledger:  ledger,
		outbox:  publisher,
		metrics: metrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Cancel flips the order to cancelled with a guarded UPDATE and releases every
// item's quantity in the same transaction, so stock is returned exactly once.
func (c *canceller) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if len(reason) > maxCancellationReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason too long")
	}
	origin := input.Origin
	if origin == "" {
		origin = CancelOriginUser
	}

	var order *models.Order
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		loaded, err := c.load(ctx, repo, input)
		if err != nil {
			return err
		}
		if !loaded.Status.Cancellable() {
			return InvalidTransition(loaded.Status.String(), enums.OrderStatusCancelled.String())
		}

		now := c.now().UTC()
		updates := map[string]any{"cancelled_at": now}
		if reason != "" {
			updates["cancellation_reason"] = reason
		}
		guard := StatusGuard{
			From:            enums.CancellableOrderStatuses,
			PaymentStatuses: input.RequirePaymentStatuses,
		}
		ok, err := repo.TransitionStatus(ctx, loaded.ID, guard, enums.OrderStatusCancelled, updates)
		if err != nil {
			return wrapTxWrite(err, "cancel order")
		}
		if !ok {
			// Lost a race with another transition; report what the row holds now.
			current, err := repo.FindByID(ctx, loaded.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
			}
			return InvalidTransition(current.Status.String(), enums.OrderStatusCancelled.String())
		}

		for _, item := range loaded.Items {
			if err := c.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		loaded.Status = enums.OrderStatusCancelled
		loaded.CancelledAt = &now
		if reason != "" {
			loaded.CancellationReason = &reason
		}
		if err := c.outbox.Emit(ctx, tx, orderCancelledEvent(loaded, reason, origin, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled")
		}
		order = loaded
		return nil
	})
	if err != nil {
		err = classifyTxError(err)
		c.metrics.Failure("cancel_order", string(codeOf(err)))
		return nil, err
	}

	c.metrics.OrderCancelled(origin)
	c.logg.Info(c.logg.WithOrderID(ctx, order.ID.String()), "order cancelled")
	return order, nil
}

func (c *canceller) load(ctx context.Context, repo Repository, input CancelInput) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if input.UserID != nil {
		order, err = repo.FindByIDForUser(ctx, *input.UserID, input.OrderID)
	} else {
		order, err = repo.FindByID(ctx, input.OrderID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}
