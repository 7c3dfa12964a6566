package payments

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/api/middleware"
	"github.com/angelmondragon/checkout-backend/api/responses"
	"github.com/angelmondragon/checkout-backend/api/validators"
	internalpayments "github.com/angelmondragon/checkout-backend/internal/payments"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
)

type createIntentRequest struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
}

type confirmRequest struct {
	PaymentIntentID  string  `json:"payment_intent_id" validate:"required,max=255"`
	PaymentMethod    *string `json:"payment_method"`
	BillingAddressID *string `json:"billing_address_id" validate:"omitempty,uuid"`
}

func (p confirmRequest) toInput() (internalpayments.ConfirmInput, error) {
	var input internalpayments.ConfirmInput
	if p.PaymentMethod != nil && strings.TrimSpace(*p.PaymentMethod) != "" {
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(*p.PaymentMethod))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]any{"field": "payment_method"})
		}
		input.PaymentMethod = method
	}
	if p.BillingAddressID != nil {
		id := uuid.MustParse(*p.BillingAddressID)
		input.BillingAddressID = &id
	}
	return input, nil
}

// CreateIntent prices the caller's cart and opens a gateway payment intent.
func CreateIntent(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateIntent(r.Context(), userID, uuid.MustParse(payload.ShippingAddressID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

// Confirm turns a succeeded payment intent into a paid order. Repeating the
// call for the same intent returns the existing order.
func Confirm(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPaymentIntentID(ctx, payload.PaymentIntentID)
		}
		order, err := svc.Confirm(ctx, userID, strings.TrimSpace(payload.PaymentIntentID), input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
