package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductSnapshot freezes the product attributes an order item was sold with.
type ProductSnapshot struct {
	Name       string            `json:"name"`
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// OrderItem is an immutable line of an Order.
type OrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	Position        int             `gorm:"column:position;not null"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Snapshot        ProductSnapshot `gorm:"column:product_snapshot;type:jsonb;serializer:json;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPriceCents  int64           `gorm:"column:unit_price_cents;not null"`
	DiscountCents   int64           `gorm:"column:discount_cents;not null;default:0"`
	TaxCents        int64           `gorm:"column:tax_cents;not null;default:0"`
	TotalPriceCents int64           `gorm:"column:total_price_cents;not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OrderItemTotal is quantity x unit price, less discount, plus tax.
func OrderItemTotal(quantity int, unitPriceCents, discountCents, taxCents int64) int64 {
	return int64(quantity)*unitPriceCents - discountCents + taxCents
}

// Consistent reports whether the stored total matches its inputs.
func (i OrderItem) Consistent() bool {
	return i.TotalPriceCents == OrderItemTotal(i.Quantity, i.UnitPriceCents, i.DiscountCents, i.TaxCents)
}
