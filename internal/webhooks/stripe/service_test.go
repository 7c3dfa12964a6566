package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/checkout-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

type stubReconciler struct {
	events []payments.PaymentEvent
	err    error
}

func (s *stubReconciler) HandleWebhook(_ context.Context, event payments.PaymentEvent) error {
	s.events = append(s.events, event)
	return s.err
}

func intentEvent(t *testing.T, eventType stripe.EventType, intent *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{ID: "evt_123", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_HandleSucceededIntent(t *testing.T) {
	reconciler := &stubReconciler{}
	service, err := NewService(ServiceParams{Payments: reconciler})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(reconciler.events) != 1 {
		t.Fatalf("expected one payment event, got %d", len(reconciler.events))
	}
	got := reconciler.events[0]
	if got.EventID != "evt_123" || got.IntentID != "pi_1" || got.Type != payments.EventIntentSucceeded {
		t.Fatalf("unexpected payment event %+v", got)
	}
	if len(got.Payload) == 0 {
		t.Fatalf("expected raw intent payload to be carried")
	}
}

func TestService_HandleFailedIntentCarriesReason(t *testing.T) {
	reconciler := &stubReconciler{}
	service, err := NewService(ServiceParams{Payments: reconciler})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	intent := &stripe.PaymentIntent{
		ID:               "pi_2",
		LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
	}
	if err := service.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, intent)); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if reconciler.events[0].Type != payments.EventIntentFailed {
		t.Fatalf("unexpected type %q", reconciler.events[0].Type)
	}
	if reconciler.events[0].FailureReason != "Your card was declined." {
		t.Fatalf("unexpected failure reason %q", reconciler.events[0].FailureReason)
	}
}

func TestService_IgnoresUnrelatedEvents(t *testing.T) {
	reconciler := &stubReconciler{}
	service, _ := NewService(ServiceParams{Payments: reconciler})

	event := &stripe.Event{Type: stripe.EventTypeChargeRefunded, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected unrelated event to be ignored, got %v", err)
	}
	if len(reconciler.events) != 0 {
		t.Fatalf("expected reconciler untouched")
	}
}

func TestService_RejectsMalformedEvents(t *testing.T) {
	service, _ := NewService(ServiceParams{Payments: &stubReconciler{}})

	if err := service.HandleEvent(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil event, got %v", err)
	}
	event := &stripe.Event{Type: stripe.EventTypePaymentIntentSucceeded, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	if err := service.HandleEvent(context.Background(), event); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing intent id, got %v", err)
	}
}

func TestService_PropagatesReconcilerErrors(t *testing.T) {
	reconciler := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "state transition disallowed")}
	service, _ := NewService(ServiceParams{Payments: reconciler})

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, &stripe.PaymentIntent{ID: "pi_3"})
	if err := service.HandleEvent(context.Background(), event); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected reconciler error, got %v", err)
	}
}
