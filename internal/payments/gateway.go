package payments

import (
	"context"

	pkgstripe "github.com/angelmondragon/checkout-backend/pkg/stripe"
)

// Metadata keys stamped on every payment intent.
const (
	MetaUserID            = "user_id"
	MetaSubtotalCents     = "subtotal_cents"
	MetaShippingCents     = "shipping_cents"
	MetaTaxCents          = "tax_cents"
	MetaTotalCents        = "total_cents"
	MetaShippingAddressID = "shipping_address_id"
)

// Gateway is the slice of the card processor checkout depends on.
// *pkgstripe.Client satisfies it.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (pkgstripe.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (pkgstripe.Intent, error)
}

var _ Gateway = (*pkgstripe.Client)(nil)
