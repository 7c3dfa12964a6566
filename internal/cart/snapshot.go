package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

// LineItem is a validated, priced cart line ready for order creation.
type LineItem struct {
	CartItemID     uuid.UUID `json:"cart_item_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
}

// Snapshot is a point-in-time, read-only view of a purchasable cart.
type Snapshot struct {
	CartID        uuid.UUID  `json:"cart_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Items         []LineItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

// Snapshotter materializes a user's cart into purchasable line items.
// The result is advisory: stock is re-checked when the order is created.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
}

type cartFinder interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type snapshotter struct {
	carts cartFinder
}

// NewSnapshotter builds a Snapshotter over the cart repository.
func NewSnapshotter(carts cartFinder) (Snapshotter, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &snapshotter{carts: carts}, nil
}

func (s *snapshotter) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}

	record, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	snapshot := &Snapshot{
		CartID: record.ID,
		UserID: userID,
		Items:  make([]LineItem, 0, len(record.Items)),
	}
	for _, item := range record.Items {
		product := item.Product
		if product == nil || !product.IsActive {
			return nil, inventory.ProductUnavailable(item.ProductID)
		}
		if product.StockQuantity < item.Quantity {
			return nil, inventory.InsufficientStock(item.ProductID, item.Quantity, product.StockQuantity)
		}
		line := LineItem{
			CartItemID:     item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  models.CartLineTotal(item.Quantity, item.UnitPriceCents),
		}
		snapshot.Items = append(snapshot.Items, line)
		snapshot.SubtotalCents += line.SubtotalCents
	}
	return snapshot, nil
}
