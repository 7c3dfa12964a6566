package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
)

// OrderItemDTO is one immutable order line.
type OrderItemDTO struct {
	ID              uuid.UUID              `json:"id"`
	Position        int                    `json:"position"`
	ProductID       uuid.UUID              `json:"product_id"`
	Product         models.ProductSnapshot `json:"product"`
	Quantity        int                    `json:"quantity"`
	UnitPriceCents  int64                  `json:"unit_price_cents"`
	DiscountCents   int64                  `json:"discount_cents"`
	TaxCents        int64                  `json:"tax_cents"`
	TotalPriceCents int64                  `json:"total_price_cents"`
}

// OrderDTO is the full API view of an order.
type OrderDTO struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	PaymentIntentID    *string             `json:"payment_intent_id,omitempty"`
	ShippingAddressID  uuid.UUID           `json:"shipping_address_id"`
	BillingAddressID   *uuid.UUID          `json:"billing_address_id,omitempty"`
	Currency           string              `json:"currency"`
	SubtotalCents      int64               `json:"subtotal_cents"`
	ShippingCents      int64               `json:"shipping_cents"`
	TaxCents           int64               `json:"tax_cents"`
	DiscountCents      int64               `json:"discount_cents"`
	TotalCents         int64               `json:"total_cents"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	Items              []OrderItemDTO      `json:"items"`
}

// OrderSummary is the compact view returned after a cancellation.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order with preloaded items.
func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		PaymentMethod:      order.PaymentMethod,
		PaymentIntentID:    order.PaymentIntentID,
		ShippingAddressID:  order.ShippingAddressID,
		BillingAddressID:   order.BillingAddressID,
		Currency:           order.Currency,
		SubtotalCents:      order.SubtotalCents,
		ShippingCents:      order.ShippingCents,
		TaxCents:           order.TaxCents,
		DiscountCents:      order.DiscountCents,
		TotalCents:         order.TotalCents,
		CancellationReason: order.CancellationReason,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		CreatedAt:          order.CreatedAt,
		Items:              make([]OrderItemDTO, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:              item.ID,
			Position:        item.Position,
			ProductID:       item.ProductID,
			Product:         item.Snapshot,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			DiscountCents:   item.DiscountCents,
			TaxCents:        item.TaxCents,
			TotalPriceCents: item.TotalPriceCents,
		})
	}
	return dto
}

// NewOrderSummary maps the fields returned by cancel.
func NewOrderSummary(order *models.Order) *OrderSummary {
	if order == nil {
		return nil
	}
	return &OrderSummary{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		CancelledAt: order.CancelledAt,
	}
}
