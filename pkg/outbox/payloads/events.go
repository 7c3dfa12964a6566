package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is the slim line representation carried in order events.
type OrderLine struct {
	ProductID      uuid.UUID `json:"productId"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	TotalCents     int64     `json:"totalCents"`
}

// OrderCreatedEvent is emitted once an order and its stock reservations commit.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	OrderNumber     string      `json:"orderNumber"`
	UserID          uuid.UUID   `json:"userId"`
	PaymentMethod   string      `json:"paymentMethod"`
	PaymentStatus   string      `json:"paymentStatus"`
	PaymentIntentID *string     `json:"paymentIntentId,omitempty"`
	Currency        string      `json:"currency"`
	SubtotalCents   int64       `json:"subtotalCents"`
	ShippingCents   int64       `json:"shippingCents"`
	TaxCents        int64       `json:"taxCents"`
	DiscountCents   int64       `json:"discountCents"`
	TotalCents      int64       `json:"totalCents"`
	Lines           []OrderLine `json:"lines"`
}

// OrderPaidEvent is emitted when a pending payment settles.
type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	OrderNumber     string    `json:"orderNumber"`
	PaymentIntentID string    `json:"paymentIntentId"`
	AmountCents     int64     `json:"amountCents"`
	PaidAt          time.Time `json:"paidAt"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed payment.
type PaymentFailedEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	OrderNumber     string    `json:"orderNumber"`
	PaymentIntentID string    `json:"paymentIntentId"`
	Reason          string    `json:"reason,omitempty"`
	FailedAt        time.Time `json:"failedAt"`
}

// OrderCancelledEvent is emitted after a cancellation releases stock.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID   `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      uuid.UUID   `json:"userId"`
	Reason      string      `json:"reason,omitempty"`
	Lines       []OrderLine `json:"lines"`
	CancelledAt time.Time   `json:"cancelledAt"`
}

// OrderStatusChangedEvent is emitted for fulfillment transitions.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}
