package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/internal/pricing"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/checkout-backend/pkg/stripe"
)

var errOrderNotFound = errors.New("no order for payment intent")

// Service reconciles gateway payment intents with orders.
type Service interface {
	CreateIntent(ctx context.Context, userID, shippingAddressID uuid.UUID) (*IntentResult, error)
	Confirm(ctx context.Context, userID uuid.UUID, intentID string, input ConfirmInput) (*orders.OrderDTO, error)
	HandleWebhook(ctx context.Context, event PaymentEvent) error
	ApplyPending(ctx context.Context, event models.PendingPaymentEvent) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressChecker interface {
	EnsureOwned(ctx context.Context, userID, addressID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentMetrics interface {
	PaymentTransition(source, status string)
	Failure(operation, code string)
}

// ServiceParams bundles the reconciler collaborators.
type ServiceParams struct {
	Tx          txRunner
	Orders      orders.Repository
	Factory     orders.Factory
	Snapshotter cart.Snapshotter
	Addresses   addressChecker
	Pricing     *pricing.Policy
	Gateway     Gateway
	Pending     PendingEventRepository
	Outbox      outboxPublisher
	Metrics     paymentMetrics
	Logger      *logger.Logger
}

type service struct {
	ServiceParams
	now func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Factory == nil:
		return nil, fmt.Errorf("order factory required")
	case params.Snapshotter == nil:
		return nil, fmt.Errorf("cart snapshotter required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address checker required")
	case params.Pricing == nil:
		return nil, fmt.Errorf("pricing policy required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Pending == nil:
		return nil, fmt.Errorf("pending event repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.Metrics == nil {
		params.Metrics = noopMetrics{}
	}
	return &service{ServiceParams: params, now: time.Now}, nil
}

// CreateIntent prices the current cart and opens a gateway intent for the total.
// Nothing is written locally; the order is created on confirmation.
func (s *service) CreateIntent(ctx context.Context, userID, shippingAddressID uuid.UUID) (*IntentResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if shippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if err := s.Addresses.EnsureOwned(ctx, userID, shippingAddressID); err != nil {
		return nil, err
	}

	breakdown, err := s.priceCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetaUserID:            userID.String(),
		MetaSubtotalCents:     strconv.FormatInt(breakdown.SubtotalCents, 10),
		MetaShippingCents:     strconv.FormatInt(breakdown.ShippingCents, 10),
		MetaTaxCents:          strconv.FormatInt(breakdown.TaxCents, 10),
		MetaTotalCents:        strconv.FormatInt(breakdown.TotalCents, 10),
		MetaShippingAddressID: shippingAddressID.String(),
	}
	intent, err := s.Gateway.CreateIntent(ctx, breakdown.TotalCents, breakdown.Currency, metadata)
	if err != nil {
		s.Metrics.Failure("create_intent", string(pkgerrors.CodeDependency))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	s.Logger.Info(s.Logger.WithPaymentIntentID(ctx, intent.ID), "payment intent created")
	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountBreakdown: breakdown,
	}, nil
}

func (s *service) priceCart(ctx context.Context, userID uuid.UUID) (pricing.Breakdown, error) {
	snapshot, err := s.Snapshotter.Snapshot(ctx, userID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	lines := make([]pricing.Line, len(snapshot.Items))
	for i, item := range snapshot.Items {
		lines[i] = pricing.Line{Quantity: item.Quantity, UnitPriceCents: item.UnitPriceCents}
	}
	return s.Pricing.Price(lines, 0)
}

// Confirm turns a succeeded intent into a paid order. Repeated calls for the same
// intent return the order created by the first one.
func (s *service) Confirm(ctx context.Context, userID uuid.UUID, intentID string, input ConfirmInput) (*orders.OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	ctx = s.Logger.WithPaymentIntentID(ctx, intentID)

	if existing, err := s.existingOrder(ctx, userID, intentID); err != nil || existing != nil {
		return existing, err
	}

	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		if pkgstripe.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	if intent.Metadata[MetaUserID] != userID.String() {
		s.Metrics.Failure("confirm_payment", string(pkgerrors.CodeUnauthorizedPayment))
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedPayment, "payment intent belongs to another user")
	}
	if intent.Status != pkgstripe.IntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment intent status is %s", intent.Status))
	}
	shippingAddressID, err := uuid.Parse(intent.Metadata[MetaShippingAddressID])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment intent has no shipping address")
	}

	snapshot, err := s.Snapshotter.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCard
	}
	order, err := s.Factory.Create(ctx, orders.CreateInput{
		UserID:            userID,
		LineItems:         snapshot.Items,
		PaymentMethod:     method,
		ShippingAddressID: shippingAddressID,
		BillingAddressID:  input.BillingAddressID,
		PaymentIntentID:   &intentID,
		PaymentStatus:     enums.PaymentStatusPaid,
		ExpectedTotal:     &intent.AmountCents,
	})
	if err != nil {
		if errors.Is(err, orders.ErrDuplicatePaymentIntent) {
			// A concurrent confirmation won the insert.
			existing, findErr := s.existingOrder(ctx, userID, intentID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.Metrics.PaymentTransition("confirm", enums.PaymentStatusPaid.String())
	return orders.NewOrderDTO(order), nil
}

func (s *service) existingOrder(ctx context.Context, userID uuid.UUID, intentID string) (*orders.OrderDTO, error) {
	order, err := s.Orders.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment intent")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedPayment, "payment intent belongs to another user")
	}
	return orders.NewOrderDTO(order), nil
}

// HandleWebhook applies a verified gateway event. Events for intents without an
// order yet are parked in pending_payment_events and replayed by the cron worker.
func (s *service) HandleWebhook(ctx context.Context, event PaymentEvent) error {
	to, ok := targetStatus(event.Type)
	if !ok {
		return nil
	}
	if event.IntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	ctx = s.Logger.WithPaymentIntentID(ctx, event.IntentID)

	err := s.settle(ctx, event.IntentID, to, event.FailureReason, nil, "webhook")
	if !errors.Is(err, errOrderNotFound) {
		return err
	}

	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	queued, err := s.Pending.Queue(ctx, &models.PendingPaymentEvent{
		EventID:         event.EventID,
		EventType:       event.Type,
		PaymentIntentID: event.IntentID,
		Payload:         payload,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue pending payment event")
	}
	if queued {
		s.Logger.Warn(ctx, "order not found for payment intent; event deferred")
	}
	return nil
}

// ApplyPending replays a deferred event. It reports false while the order is
// still missing.
func (s *service) ApplyPending(ctx context.Context, event models.PendingPaymentEvent) (bool, error) {
	to, ok := targetStatus(event.EventType)
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported event type %s", event.EventType))
	}
	ctx = s.Logger.WithPaymentIntentID(ctx, event.PaymentIntentID)

	id := event.ID
	err := s.settle(ctx, event.PaymentIntentID, to, failureReason(event.Payload), &id, "replay")
	if errors.Is(err, errOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// settle moves payment_status from pending to `to` with a guarded UPDATE.
// Re-delivering the status the order already has is a no-op.
func (s *service) settle(ctx context.Context, intentID string, to enums.PaymentStatus, reason string, pendingID *uuid.UUID, source string) error {
	applied := false
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Orders.WithTx(tx)
		order, err := repo.FindByPaymentIntent(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errOrderNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment intent")
		}

		if order.PaymentStatus == enums.PaymentStatusPending {
			ok, err := repo.SettlePayment(ctx, intentID, to)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle payment")
			}
			if ok {
				applied = true
				if to == enums.PaymentStatusPaid && order.Status == enums.OrderStatusPending {
					order.Status = enums.OrderStatusConfirmed
				}
				order.PaymentStatus = to
				if err := s.Outbox.Emit(ctx, tx, settlementEvent(order, to, reason, s.now().UTC())); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment event")
				}
			} else if order, err = repo.FindByPaymentIntent(ctx, intentID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
			}
		}

		if !applied && order.PaymentStatus != to {
			return orders.InvalidTransition(order.PaymentStatus.String(), to.String())
		}

		if pendingID != nil {
			if err := s.Pending.WithTx(tx).MarkApplied(ctx, *pendingID, s.now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark pending event applied")
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errOrderNotFound) {
			return err
		}
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, "commit payment settlement")
		}
		s.Metrics.Failure("settle_payment", string(codeOf(err)))
		return err
	}
	if applied {
		s.Metrics.PaymentTransition(source, to.String())
		s.Logger.Info(ctx, fmt.Sprintf("payment %s", to))
	}
	return nil
}

// failureReason reads last_payment_error.message from a stored intent object.
func failureReason(payload json.RawMessage) string {
	var body struct {
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &body) != nil || body.LastPaymentError == nil {
		return ""
	}
	return body.LastPaymentError.Message
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return pkgerrors.CodeInternal
}

type noopMetrics struct{}

func (noopMetrics) PaymentTransition(string, string) {}
func (noopMetrics) Failure(string, string)           {}
