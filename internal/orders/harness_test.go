package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/address"
	"github.com/angelmondragon/checkout-backend/internal/cart"
	"github.com/angelmondragon/checkout-backend/internal/inventory"
	"github.com/angelmondragon/checkout-backend/internal/pricing"
	"github.com/angelmondragon/checkout-backend/pkg/config"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-backend/pkg/logger"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
)

type harness struct {
	conn      *gorm.DB
	repo      Repository
	factory   Factory
	canceller Canceller
	svc       Service
}

type harnessOption func(*FactoryParams)

func withLedger(ledger inventory.Ledger) harnessOption {
	return func(p *FactoryParams) { p.Ledger = ledger }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	client := db.FromConn(conn)
	repo := NewRepository(conn)
	carts := cart.NewRepository(conn)

	addresses, err := address.NewService(conn)
	require.NoError(t, err)
	policy, err := pricing.NewPolicy(config.PricingConfig{
		Currency:                   "usd",
		FreeShippingThresholdCents: 5000,
		FlatShippingCents:          599,
		TaxRatePercent:             "8.25",
	})
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	params := FactoryParams{
		Tx:        client,
		Repo:      repo,
		Carts:     carts,
		Addresses: addresses,
		Pricing:   policy,
		Numbers:   NewNumberGenerator("ORD", nil, logg),
		Outbox:    publisher,
		Logger:    logg,
	}
	for _, opt := range opts {
		opt(&params)
	}
	factory, err := NewFactory(params)
	require.NoError(t, err)

	// Distinct, increasing creation times keep cursor ordering deterministic.
	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	factory.(*factoryImpl).now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	canceller, err := NewCanceller(client, repo, nil, publisher, nil, logg)
	require.NoError(t, err)

	snapshotter, err := cart.NewSnapshotter(carts)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:          client,
		Repo:        repo,
		Snapshotter: snapshotter,
		Factory:     factory,
		Canceller:   canceller,
		Outbox:      publisher,
	})
	require.NoError(t, err)

	return &harness{conn: conn, repo: repo, factory: factory, canceller: canceller, svc: svc}
}

func (h *harness) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Table("outbox_events").Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Table("orders").Count(&count).Error)
	return count
}

func (h *harness) cartItemCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Table("cart_items").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Count(&count).Error)
	return count
}

// failingLedger reserves through the real ledger until failOn calls have been made.
type failingLedger struct {
	inventory.Ledger
	calls  int
	failOn int
	err    error
}

func (l *failingLedger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	l.calls++
	if l.calls == l.failOn {
		return l.err
	}
	return l.Ledger.Reserve(ctx, tx, productID, qty)
}
