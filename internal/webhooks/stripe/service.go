package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/checkout-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

type paymentReconciler interface {
	HandleWebhook(ctx context.Context, event payments.PaymentEvent) error
}

type ServiceParams struct {
	Payments paymentReconciler
}

// Service decodes verified Stripe events into gateway-neutral payment events.
type Service struct {
	payments paymentReconciler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	return &Service{payments: params.Payments}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		if intent.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
		}
		reason := ""
		if intent.LastPaymentError != nil {
			reason = intent.LastPaymentError.Msg
		}
		return s.payments.HandleWebhook(ctx, payments.PaymentEvent{
			EventID:       event.ID,
			Type:          string(event.Type),
			IntentID:      intent.ID,
			FailureReason: reason,
			Payload:       json.RawMessage(event.Data.Raw),
		})
	default:
		return nil
	}
}
