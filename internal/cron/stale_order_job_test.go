package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/internal/orders"
	"github.com/angelmondragon/checkout-backend/pkg/db"
	"github.com/angelmondragon/checkout-backend/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
	"github.com/angelmondragon/checkout-backend/pkg/outbox"
)

var expiryNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, conn *gorm.DB, product *models.Product, qty int, status enums.OrderStatus, payment enums.PaymentStatus, createdAt time.Time) *models.Order {
	t.Helper()
	id := uuid.New()
	order := &models.Order{
		ID:                id,
		OrderNumber:       fmt.Sprintf("ORD-%s", id.String()[:8]),
		UserID:            uuid.New(),
		Status:            status,
		PaymentStatus:     payment,
		PaymentMethod:     enums.PaymentMethodBankTransfer,
		ShippingAddressID: uuid.New(),
		Currency:          "usd",
		SubtotalCents:     int64(qty) * product.PriceCents,
		TotalCents:        int64(qty) * product.PriceCents,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
		Items: []models.OrderItem{{
			ID:              uuid.New(),
			Position:        1,
			ProductID:       product.ID,
			Snapshot:        models.ProductSnapshot{Name: product.Name, SKU: product.SKU},
			Quantity:        qty,
			UnitPriceCents:  product.PriceCents,
			TotalPriceCents: int64(qty) * product.PriceCents,
			CreatedAt:       createdAt,
		}},
	}
	require.NoError(t, orders.NewRepository(conn).Create(context.Background(), order))
	return order
}

func newStaleOrderJob(t *testing.T, conn *gorm.DB) *staleOrderJob {
	t.Helper()
	logg := discardLogger()
	repo := orders.NewRepository(conn)
	canceller, err := orders.NewCanceller(db.FromConn(conn), repo, nil, outbox.NewService(outbox.NewRepository(conn), logg), nil, logg)
	require.NoError(t, err)

	jobIface, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger:    logg,
		Orders:    repo,
		Canceller: canceller,
		TTL:       72 * time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*staleOrderJob)
	job.now = func() time.Time { return expiryNow }
	return job
}

func orderStatus(t *testing.T, conn *gorm.DB, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", id).Error)
	return order.Status
}

func TestStaleOrderJobExpiresUnpaidOrders(t *testing.T) {
	conn := dbtest.Open(t)
	// Stock already reflects the reservations held by the seeded orders.
	product := dbtest.SeedProduct(t, conn, "A", 1000, 2)

	old := expiryNow.Add(-96 * time.Hour)
	unpaid := seedOrder(t, conn, product, 3, enums.OrderStatusPending, enums.PaymentStatusPending, old)
	failed := seedOrder(t, conn, product, 1, enums.OrderStatusPending, enums.PaymentStatusFailed, old)
	fresh := seedOrder(t, conn, product, 1, enums.OrderStatusPending, enums.PaymentStatusPending, expiryNow.Add(-time.Hour))
	paid := seedOrder(t, conn, product, 1, enums.OrderStatusConfirmed, enums.PaymentStatusPaid, old)

	job := newStaleOrderJob(t, conn)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, enums.OrderStatusCancelled, orderStatus(t, conn, unpaid.ID))
	assert.Equal(t, enums.OrderStatusCancelled, orderStatus(t, conn, failed.ID))
	assert.Equal(t, enums.OrderStatusPending, orderStatus(t, conn, fresh.ID))
	assert.Equal(t, enums.OrderStatusConfirmed, orderStatus(t, conn, paid.ID))
	assert.Equal(t, 6, dbtest.LoadProduct(t, conn, product.ID).StockQuantity)

	var reason string
	require.NoError(t, conn.Table("orders").Select("cancellation_reason").Where("id = ?", unpaid.ID).Scan(&reason).Error)
	assert.Equal(t, expiryReason, reason)

	// A second run finds nothing left to expire.
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 6, dbtest.LoadProduct(t, conn, product.ID).StockQuantity)
}

type stubStaleFinder struct {
	rows []models.Order
}

func (s stubStaleFinder) FindStalePending(context.Context, time.Time, int) ([]models.Order, error) {
	return s.rows, nil
}

type stubCanceller struct {
	errs  map[uuid.UUID]error
	calls []orders.CancelInput
}

func (s *stubCanceller) Cancel(_ context.Context, input orders.CancelInput) (*models.Order, error) {
	s.calls = append(s.calls, input)
	if err := s.errs[input.OrderID]; err != nil {
		return nil, err
	}
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func TestStaleOrderJobSkipsRacesAndCombinesErrors(t *testing.T) {
	raced, broken, ok := uuid.New(), uuid.New(), uuid.New()
	canceller := &stubCanceller{errs: map[uuid.UUID]error{
		raced:  orders.InvalidTransition("confirmed", "cancelled"),
		broken: pkgerrors.New(pkgerrors.CodeTransactionConflict, "serialization failure"),
	}}
	job, err := NewStaleOrderJob(StaleOrderJobParams{
		Logger:    discardLogger(),
		Orders:    stubStaleFinder{rows: []models.Order{{ID: raced}, {ID: broken}, {ID: ok}}},
		Canceller: canceller,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTransactionConflict))
	require.Len(t, canceller.calls, 3)
	for _, call := range canceller.calls {
		assert.Equal(t, orders.CancelOriginExpiry, call.Origin)
		assert.Nil(t, call.UserID)
		assert.ElementsMatch(t, []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}, call.RequirePaymentStatuses)
	}
}
