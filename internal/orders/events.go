package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	"github.com/angelmondragon/checkout-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

func eventLines(items []models.OrderItem) []payloads.OrderLine {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalPriceCents,
		})
	}
	return lines
}

func actor(userID uuid.UUID, source string) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, Source: source}
}

func orderCreatedEvent(order *models.Order) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor(order.UserID, "checkout"),
		Data: payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			UserID:          order.UserID,
			PaymentMethod:   order.PaymentMethod.String(),
			PaymentStatus:   order.PaymentStatus.String(),
			PaymentIntentID: order.PaymentIntentID,
			Currency:        order.Currency,
			SubtotalCents:   order.SubtotalCents,
			ShippingCents:   order.ShippingCents,
			TaxCents:        order.TaxCents,
			DiscountCents:   order.DiscountCents,
			TotalCents:      order.TotalCents,
			Lines:           eventLines(order.Items),
		},
		OccurredAt: order.CreatedAt,
	}
}

func orderCancelledEvent(order *models.Order, reason, source string, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor(order.UserID, source),
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      reason,
			Lines:       eventLines(order.Items),
			CancelledAt: at,
		},
		OccurredAt: at,
	}
}

func orderStatusChangedEvent(order *models.Order, from, to enums.OrderStatus, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:   order.ID,
			From:      from.String(),
			To:        to.String(),
			ChangedAt: at,
		},
		OccurredAt: at,
	}
}
