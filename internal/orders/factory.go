package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/internal/pricing"
	product "github.com/angelmondragon/checkout-backend/internal/products"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

// ErrDuplicatePaymentIntent marks an insert rejected because another order already
// holds the payment intent.
var ErrDuplicatePaymentIntent = errors.New("payment intent already has an order")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressChecker interface {
	EnsureOwnedTx(ctx context.Context, tx *gorm.DB, userID, addressID uuid.UUID) error
}

type cartClearer interface {
	WithTx(tx *gorm.DB) cart.CartRepository
}

type numberSource interface {
	Next(ctx context.Context, now time.Time) string
}

type checkoutMetrics interface {
	OrderCreated(paymentMethod string, took time.Duration)
	OrderCancelled(origin string)
	Failure(operation, code string)
}

// CreateInput is everything the factory needs to build an order.
type CreateInput struct {
	UserID            uuid.UUID
	LineItems         []cart.LineItem
	PaymentMethod     enums.PaymentMethod
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
	PaymentIntentID   *string
	PaymentStatus     enums.PaymentStatus
	DiscountCents     int64
	// ExpectedTotal, when set, must equal the priced total (the amount already
	// authorized by the gateway).
	ExpectedTotal *int64
}

// AmountMismatch is the detail payload when the priced total differs from the
// authorized amount.
type AmountMismatch struct {
	Expected int64 `json:"expected_cents"`
	Actual   int64 `json:"actual_cents"`
}

// Factory builds and commits orders.
type Factory interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
}

// FactoryParams bundles the factory collaborators.
type FactoryParams struct {
	Tx        txRunner
	Repo      Repository
	Carts     cartClearer
	Addresses addressChecker
	Ledger    inventory.Ledger
	Pricing   *pricing.Policy
	Numbers   numberSource
	Outbox    outboxPublisher
	Metrics   checkoutMetrics
	Logger    *logger.Logger
}

type factoryImpl struct {
	FactoryParams
	now func() time.Time
}

// NewFactory validates collaborators and returns the order factory.
func NewFactory(params FactoryParams) (Factory, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address checker required")
	case params.Pricing == nil:
		return nil, fmt.Errorf("pricing policy required")
	case params.Numbers == nil:
		return nil, fmt.Errorf("order number source required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		params.Ledger = inventory.NewLedger()
	}
	if params.Metrics == nil {
		params.Metrics = noopMetrics{}
	}
	return &factoryImpl{FactoryParams: params, now: time.Now}, nil
}

// Create runs the whole checkout in one transaction: fresh product validation,
// pricing, order insert, stock reservation, cart clearing and the created event.
// Nothing persists unless every step succeeds.
func (f *factoryImpl) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}

	started := f.now()
	var order *models.Order
	err := f.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := f.Addresses.EnsureOwnedTx(ctx, tx, input.UserID, input.ShippingAddressID); err != nil {
			return err
		}
		if input.BillingAddressID != nil {
			if err := f.Addresses.EnsureOwnedTx(ctx, tx, input.UserID, *input.BillingAddressID); err != nil {
				return err
			}
		}

		products, err := f.loadProducts(ctx, tx, input.LineItems)
		if err != nil {
			return err
		}

		lines := make([]pricing.Line, len(input.LineItems))
		for i, item := range input.LineItems {
			lines[i] = pricing.Line{Quantity: item.Quantity, UnitPriceCents: item.UnitPriceCents}
		}
		breakdown, err := f.Pricing.Price(lines, input.DiscountCents)
		if err != nil {
			return err
		}
		if input.ExpectedTotal != nil && *input.ExpectedTotal != breakdown.TotalCents {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart total changed since payment was authorized").
				WithDetails(AmountMismatch{Expected: *input.ExpectedTotal, Actual: breakdown.TotalCents})
		}

		order = f.buildOrder(ctx, input, products, breakdown)
		if err := f.Repo.WithTx(tx).Create(ctx, order); err != nil {
			return classifyInsert(err)
		}

		for _, item := range order.Items {
			if err := f.Ledger.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if _, err := f.Carts.WithTx(tx).ClearByUser(ctx, input.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		if err := f.Outbox.Emit(ctx, tx, orderCreatedEvent(order)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		err = classifyTxError(err)
		f.Metrics.Failure("create_order", string(codeOf(err)))
		return nil, err
	}

	f.Metrics.OrderCreated(order.PaymentMethod.String(), f.now().Sub(started))
	ctx = f.Logger.WithOrderID(ctx, order.ID.String())
	f.Logger.Info(ctx, "order created")
	return order, nil
}

func validateCreateInput(input *CreateInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if len(input.LineItems) == 0 {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.ShippingAddressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.PaymentStatus == "" {
		input.PaymentStatus = enums.PaymentStatusPending
	}
	if input.PaymentStatus != enums.PaymentStatusPending && input.PaymentStatus != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeValidation, "orders start pending or paid")
	}
	if input.PaymentStatus == enums.PaymentStatusPaid && input.PaymentIntentID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "paid orders require a payment intent")
	}
	for _, item := range input.LineItems {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}
	return nil
}

// loadProducts re-reads every product inside the transaction. The snapshot that
// produced the line items is advisory and may be stale by now.
func (f *factoryImpl) loadProducts(ctx context.Context, tx *gorm.DB, items []cart.LineItem) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := product.NewRepository(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	requested := map[uuid.UUID]int{}
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok || !p.IsActive {
			return nil, inventory.ProductUnavailable(item.ProductID)
		}
		if p.StockQuantity < requested[item.ProductID] {
			return nil, inventory.InsufficientStock(item.ProductID, requested[item.ProductID], p.StockQuantity)
		}
	}
	return products, nil
}

func (f *factoryImpl) buildOrder(ctx context.Context, input CreateInput, products map[uuid.UUID]models.Product, breakdown pricing.Breakdown) *models.Order {
	now := f.now().UTC()
	status := enums.OrderStatusPending
	if input.PaymentStatus == enums.PaymentStatusPaid {
		status = enums.OrderStatusConfirmed
	}

	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       f.Numbers.Next(ctx, now),
		UserID:            input.UserID,
		Status:            status,
		PaymentStatus:     input.PaymentStatus,
		PaymentMethod:     input.PaymentMethod,
		PaymentIntentID:   input.PaymentIntentID,
		ShippingAddressID: input.ShippingAddressID,
		BillingAddressID:  input.BillingAddressID,
		Currency:          breakdown.Currency,
		SubtotalCents:     breakdown.SubtotalCents,
		ShippingCents:     breakdown.ShippingCents,
		TaxCents:          breakdown.TaxCents,
		DiscountCents:     breakdown.DiscountCents,
		TotalCents:        breakdown.TotalCents,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items:             make([]models.OrderItem, 0, len(input.LineItems)),
	}

	for i, item := range input.LineItems {
		p := products[item.ProductID]
		tax := breakdown.LineTaxCents[i]
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Position:  i + 1,
			ProductID: item.ProductID,
			Snapshot: models.ProductSnapshot{
				Name:       p.Name,
				SKU:        p.SKU,
				Attributes: p.Attributes,
			},
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TaxCents:        tax,
			TotalPriceCents: models.OrderItemTotal(item.Quantity, item.UnitPriceCents, 0, tax),
			CreatedAt:       now,
		})
	}
	return order
}

func isDuplicateIntent(err error) bool {
	return db.IsUniqueViolation(err, "orders_payment_intent_id_key") ||
		db.IsUniqueViolation(err, "orders.payment_intent_id")
}

func classifyInsert(err error) error {
	if isDuplicateIntent(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, fmt.Errorf("%w: %v", ErrDuplicatePaymentIntent, err), "order already exists for payment intent")
	}
	if db.IsUniqueViolation(err, "") || db.IsTransactionConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, "insert order")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
}

func wrapTxWrite(err error, op string) error {
	if db.IsTransactionConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, op)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

// classifyTxError maps failures raised outside the callback (begin, commit) to a
// retryable conflict. Typed errors from the callback pass through.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "request cancelled")
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, "commit order transaction")
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(string, time.Duration) {}
func (noopMetrics) OrderCancelled(string)             {}
func (noopMetrics) Failure(string, string)            {}
