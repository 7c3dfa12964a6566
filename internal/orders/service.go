package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/pagination"
)

// Service is the buyer and fulfillment facing surface over orders.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*OrderSummary, error)
	Advance(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error)
}

// PlaceOrderInput is the payload of a direct (non-card) checkout.
type PlaceOrderInput struct {
	PaymentMethod     enums.PaymentMethod
	ShippingAddressID uuid.UUID
	BillingAddressID  *uuid.UUID
}

// ServiceParams bundles the order service collaborators.
type ServiceParams struct {
	Tx          txRunner
	Repo        Repository
	Snapshotter cart.Snapshotter
	Factory     Factory
	Canceller   Canceller
	Outbox      outboxPublisher
}

type service struct {
	ServiceParams
	now func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Snapshotter == nil:
		return nil, fmt.Errorf("cart snapshotter required")
	case params.Factory == nil:
		return nil, fmt.Errorf("order factory required")
	case params.Canceller == nil:
		return nil, fmt.Errorf("canceller required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{ServiceParams: params, now: time.Now}, nil
}

// PlaceOrder checks out the user's cart for payment methods settled outside the
// card gateway. Card orders go through the payment intent flow instead.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*OrderDTO, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.PaymentMethod == enums.PaymentMethodCard {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card orders are created by confirming a payment intent")
	}

	snapshot, err := s.Snapshotter.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	order, err := s.Factory.Create(ctx, CreateInput{
		UserID:            userID,
		LineItems:         snapshot.Items,
		PaymentMethod:     input.PaymentMethod,
		ShippingAddressID: input.ShippingAddressID,
		BillingAddressID:  input.BillingAddressID,
		PaymentStatus:     enums.PaymentStatusPending,
	})
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	order, err := s.Repo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return NewOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	rows, next, err := s.Repo.ListByUser(ctx, userID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, *NewOrderDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*OrderSummary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	order, err := s.Canceller.Cancel(ctx, CancelInput{
		OrderID: orderID,
		UserID:  &userID,
		Reason:  reason,
		Origin:  CancelOriginUser,
	})
	if err != nil {
		return nil, err
	}
	return NewOrderSummary(order), nil
}

func (s *service) Advance(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var order *models.Order
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = advance(ctx, tx, s.Repo, s.Outbox, orderID, target, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return NewOrderDTO(order), nil
}
