package payments

import (
	"time"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	"github.com/angelmondragon/checkout-backend/pkg/outbox/payloads"
)

func settlementEvent(order *models.Order, status enums.PaymentStatus, reason string, at time.Time) outbox.DomainEvent {
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "payment_gateway"},
		OccurredAt:    at,
	}
	intentID := ""
	if order.PaymentIntentID != nil {
		intentID = *order.PaymentIntentID
	}
	if status == enums.PaymentStatusPaid {
		event.EventType = enums.EventOrderPaid
		event.Data = payloads.OrderPaidEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: intentID,
			AmountCents:     order.TotalCents,
			PaidAt:          at,
		}
		return event
	}
	event.EventType = enums.EventOrderPaymentFailed
	event.Data = payloads.PaymentFailedEvent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		PaymentIntentID: intentID,
		Reason:          reason,
		FailedAt:        at,
	}
	return event
}
