package inventory

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

// Ledger mutates product stock counters inside a transaction owned by the caller.
// Every mutation is a single conditional UPDATE so concurrent checkouts can never
// drive stock_quantity below zero.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// StockShortage is the detail payload attached to INSUFFICIENT_STOCK errors.
type StockShortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Unavailable is the detail payload attached to PRODUCT_UNAVAILABLE errors.
type Unavailable struct {
	ProductID uuid.UUID `json:"product_id"`
}

// InsufficientStock builds the typed error for a shortfall.
func InsufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(StockShortage{ProductID: productID, Requested: requested, Available: available})
}

// ProductUnavailable builds the typed error for an inactive product.
func ProductUnavailable(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product unavailable").
		WithDetails(Unavailable{ProductID: productID})
}

type ledger struct{}

// NewLedger returns the SQL-backed stock ledger.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve decrements stock and increments sales for productID. Nothing changes when
// the product is missing, inactive, or short on stock.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validate(tx, productID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock_quantity >= ?", productID, true, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"sales_count":    gorm.Expr("sales_count + ?", qty),
		})
	if res.Error != nil {
		return wrapWrite(res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	return explainRejection(ctx, tx, productID, qty)
}

// Release returns qty units to stock. sales_count never drops below zero.
func (ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validate(tx, productID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"sales_count":    gorm.Expr("CASE WHEN sales_count >= ? THEN sales_count - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		return wrapWrite(res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(Unavailable{ProductID: productID})
	}
	return nil
}

func validate(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func wrapWrite(err error, op string) error {
	if db.IsTransactionConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, op)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

func explainRejection(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	var product models.Product
	err := tx.WithContext(ctx).
		Select("id", "is_active", "stock_quantity").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(Unavailable{ProductID: productID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return ProductUnavailable(productID)
	}
	return InsufficientStock(productID, qty, product.StockQuantity)
}
