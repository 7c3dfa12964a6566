package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/checkout-backend/api/responses"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

const (
	maxWebhookBodyBytes = 64 << 10
	signatureHeader     = "Stripe-Signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type ack struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// StripeWebhook verifies and applies payment intent notifications. Each event
// id is claimed before processing; a failed event releases its claim so the
// gateway's redelivery is handled again.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		event, err := verifiedEvent(r, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event"))
			return
		}
		if seen {
			responses.WriteSuccess(w, ack{Received: true, Duplicate: true})
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if releaseErr := guard.Delete(context.WithoutCancel(ctx), event.ID); releaseErr != nil && logg != nil {
				logg.Error(ctx, "release webhook claim", releaseErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, ack{Received: true})
	}
}

func verifiedEvent(r *http.Request, secret string) (*stripe.Event, error) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe signature missing")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body")
	}
	if len(payload) > maxWebhookBodyBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "verify signature")
	}
	return &event, nil
}
