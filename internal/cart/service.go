package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

const defaultMaxItemQuantity = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes the buyer's cart operations.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// AddItemInput is the payload of an add-to-cart request.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type service struct {
	repo        CartRepository
	tx          txRunner
	productRepo productLoader
	maxQty      int
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, productRepo productLoader, maxQty int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if maxQty <= 0 {
		maxQty = defaultMaxItemQuantity
	}
	return &service{
		repo:        repo,
		tx:          tx,
		productRepo: productRepo,
		maxQty:      maxQty,
	}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(userID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return NewCartDTO(record), nil
}

// AddItem captures the product's current price and merges into an existing line
// for the same product.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.validateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	product, err := s.loadProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkPurchasable(product, input.ProductID, input.Quantity); err != nil {
		return nil, err
	}

	record, err := s.repo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindItemByProduct(ctx, record.ID, input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		quantity := input.Quantity
		if existing != nil {
			quantity += existing.Quantity
		}
		if err := s.validateQuantity(quantity); err != nil {
			return err
		}
		if err := checkPurchasable(product, input.ProductID, quantity); err != nil {
			return err
		}

		if existing != nil {
			existing.Quantity = quantity
			existing.UnitPriceCents = product.PriceCents
			existing.TotalPriceCents = models.CartLineTotal(quantity, product.PriceCents)
			return wrapWrite(repo.UpdateItem(ctx, existing))
		}
		return wrapWrite(repo.CreateItem(ctx, &models.CartItem{
			CartID:          record.ID,
			ProductID:       product.ID,
			Quantity:        quantity,
			UnitPriceCents:  product.PriceCents,
			TotalPriceCents: models.CartLineTotal(quantity, product.PriceCents),
		}))
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// UpdateItem sets the quantity of a line, keeping the captured unit price.
func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}

	record, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, record.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		if err := checkPurchasable(item.Product, item.ProductID, quantity); err != nil {
			return err
		}
		item.Quantity = quantity
		item.TotalPriceCents = models.CartLineTotal(quantity, item.UnitPriceCents)
		return wrapWrite(repo.UpdateItem(ctx, item))
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	record, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.repo.DeleteItem(ctx, record.ID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
	}
	if !deleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if _, err := s.repo.ClearByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) findCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return record, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func checkPurchasable(product *models.Product, productID uuid.UUID, quantity int) error {
	if product == nil || !product.IsActive {
		return inventory.ProductUnavailable(productID)
	}
	if product.StockQuantity < quantity {
		return inventory.InsufficientStock(productID, quantity, product.StockQuantity)
	}
	return nil
}

func (s *service) validateQuantity(quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > s.maxQty {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must not exceed %d", s.maxQty))
	}
	return nil
}

func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, "") || db.IsTransactionConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, "concurrent cart update")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cart item")
}
