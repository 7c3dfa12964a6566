package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/pkg/enums"
)

// Order is the immutable record of a checkout. Only status, payment status and
// lifecycle timestamps change after creation.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status             enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;not null"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentIntentID    *string             `gorm:"column:payment_intent_id;uniqueIndex"`
	ShippingAddressID  uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID   *uuid.UUID          `gorm:"column:billing_address_id;type:uuid"`
	Currency           string              `gorm:"column:currency;not null"`
	SubtotalCents      int64               `gorm:"column:subtotal_cents;not null"`
	ShippingCents      int64               `gorm:"column:shipping_cents;not null"`
	TaxCents           int64               `gorm:"column:tax_cents;not null"`
	DiscountCents      int64               `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int64               `gorm:"column:total_cents;not null"`
	CancellationReason *string             `gorm:"column:cancellation_reason"`
	ShippedAt          *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
