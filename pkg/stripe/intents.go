package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// IntentStatus mirrors the PaymentIntent statuses checkout cares about.
type IntentStatus string

const (
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusProcessing      IntentStatus = "processing"
	IntentStatusRequiresPayment IntentStatus = "requires_payment_method"
	IntentStatusCanceled        IntentStatus = "canceled"
)

// Intent is the gateway-neutral view of a Stripe PaymentIntent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// CreateIntent creates a PaymentIntent for the amount with automatic payment methods.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Intent, error) {
	if c == nil || c.api == nil {
		return Intent{}, errors.New("stripe client not initialized")
	}
	if amountCents <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: metadata,
	}
	pi, err := c.api.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return toIntent(pi), nil
}

// RetrieveIntent loads the current state of a PaymentIntent.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	if c == nil || c.api == nil {
		return Intent{}, errors.New("stripe client not initialized")
	}
	pi, err := c.api.V1PaymentIntents.Retrieve(ctx, intentID, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		return Intent{}, fmt.Errorf("retrieve payment intent %s: %w", intentID, err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) Intent {
	if pi == nil {
		return Intent{}
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

// IsNotFound reports whether err is Stripe's resource_missing error.
func IsNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}
