package payments

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/internal/pricing"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
)

// Gateway event types that move payment_status.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// IntentResult is returned to the client so it can complete payment.
type IntentResult struct {
	PaymentIntentID string            `json:"payment_intent_id"`
	ClientSecret    string            `json:"client_secret"`
	AmountBreakdown pricing.Breakdown `json:"amount_breakdown"`
}

// ConfirmInput carries the optional fields of a synchronous confirmation.
type ConfirmInput struct {
	PaymentMethod    enums.PaymentMethod
	BillingAddressID *uuid.UUID
}

// PaymentEvent is a verified, decoded gateway notification.
type PaymentEvent struct {
	EventID       string
	Type          string
	IntentID      string
	FailureReason string
	Payload       json.RawMessage
}

func targetStatus(eventType string) (enums.PaymentStatus, bool) {
	switch eventType {
	case EventIntentSucceeded:
		return enums.PaymentStatusPaid, true
	case EventIntentFailed:
		return enums.PaymentStatusFailed, true
	default:
		return "", false
	}
}
