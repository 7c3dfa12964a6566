package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is a (cart, product) line with the unit price captured when it was added.
type CartItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID `gorm:"column:cart_id;type:uuid;not null"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int       `gorm:"column:quantity;not null"`
	UnitPriceCents  int64     `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int64     `gorm:"column:total_price_cents;not null"`
	Product         *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CartLineTotal is the derived total of a cart line.
func CartLineTotal(quantity int, unitPriceCents int64) int64 {
	return int64(quantity) * unitPriceCents
}
