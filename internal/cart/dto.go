package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
)

// CartDTO is the API view of a user's cart.
type CartDTO struct {
	ID            uuid.UUID     `json:"id,omitempty"`
	UserID        uuid.UUID     `json:"user_id"`
	Items         []CartItemDTO `json:"items"`
	ItemCount     int           `json:"item_count"`
	SubtotalCents int64         `json:"subtotal_cents"`
}

// CartItemDTO is one cart line.
type CartItemDTO struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Name            string    `json:"name,omitempty"`
	SKU             string    `json:"sku,omitempty"`
	Quantity        int       `json:"quantity"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	TotalPriceCents int64     `json:"total_price_cents"`
}

// NewCartDTO maps a cart with preloaded items to its DTO.
func NewCartDTO(cart *models.Cart) *CartDTO {
	if cart == nil {
		return nil
	}
	dto := &CartDTO{
		ID:     cart.ID,
		UserID: cart.UserID,
		Items:  make([]CartItemDTO, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		line := CartItemDTO{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TotalPriceCents: models.CartLineTotal(item.Quantity, item.UnitPriceCents),
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.SKU = item.Product.SKU
		}
		dto.Items = append(dto.Items, line)
		dto.ItemCount += item.Quantity
		dto.SubtotalCents += line.TotalPriceCents
	}
	return dto
}

func emptyCart(userID uuid.UUID) *CartDTO {
	return &CartDTO{UserID: userID, Items: []CartItemDTO{}}
}
