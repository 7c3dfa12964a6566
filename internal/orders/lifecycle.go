package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

// advance walks a confirmed order forward one fulfillment step, stamping
// shipped_at and delivered_at as it goes.
func advance(ctx context.Context, tx *gorm.DB, repo Repository, publisher outboxPublisher, orderID uuid.UUID, target enums.OrderStatus, now time.Time) (*models.Order, error) {
	repo = repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	from := order.Status
	if !from.CanAdvanceTo(target) {
		return nil, InvalidTransition(from.String(), target.String())
	}

	updates := map[string]any{}
	switch target {
	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
		order.ShippedAt = &now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		order.DeliveredAt = &now
	}

	ok, err := repo.TransitionStatus(ctx, order.ID, StatusGuard{From: []enums.OrderStatus{from}}, target, updates)
	if err != nil {
		return nil, wrapTxWrite(err, "advance order")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeTransactionConflict, "order changed concurrently")
	}

	order.Status = target
	if err := publisher.Emit(ctx, tx, orderStatusChangedEvent(order, from, target, now)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
	}
	return order, nil
}
