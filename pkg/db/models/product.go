package models

import (
	"time"

	"github.com/google/uuid"
)

// Product holds the catalog fields checkout reads and the stock counters it mutates.
type Product struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU           string            `gorm:"column:sku;not null"`
	Name          string            `gorm:"column:name;not null"`
	PriceCents    int64             `gorm:"column:price_cents;not null"`
	StockQuantity int               `gorm:"column:stock_quantity;not null;default:0"`
	SalesCount    int               `gorm:"column:sales_count;not null;default:0"`
	IsActive      bool              `gorm:"column:is_active;not null;default:true"`
	Attributes    map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
