package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

func TestReserveDecrementsStockAndCountsSales(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "a", 1000, 5)
	ledger := NewLedger()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, product.ID, 3)
	})
	require.NoError(t, err)

	got := dbtest.LoadProduct(t, conn, product.ID)
	assert.Equal(t, 2, got.StockQuantity)
	assert.Equal(t, 3, got.SalesCount)
}

func TestReserveInsufficientStockLeavesRowUntouched(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "b", 2000, 1)
	ledger := NewLedger()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(context.Background(), tx, product.ID, 2)
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	assert.Equal(t, StockShortage{ProductID: product.ID, Requested: 2, Available: 1}, typed.Details())

	got := dbtest.LoadProduct(t, conn, product.ID)
	assert.Equal(t, 1, got.StockQuantity)
	assert.Equal(t, 0, got.SalesCount)
}

func TestReserveInactiveProduct(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "c", 500, 10)
	dbtest.DeactivateProduct(t, conn, product.ID)

	err := NewLedger().Reserve(context.Background(), conn, product.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProductUnavailable), "got %v", err)
	assert.Equal(t, 10, dbtest.LoadProduct(t, conn, product.ID).StockQuantity)
}

func TestReserveMissingProduct(t *testing.T) {
	conn := dbtest.Open(t)

	err := NewLedger().Reserve(context.Background(), conn, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestLedgerRejectsNonPositiveQuantity(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "d", 500, 10)
	ledger := NewLedger()

	for _, qty := range []int{0, -1} {
		err := ledger.Reserve(context.Background(), conn, product.ID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "reserve qty %d: %v", qty, err)
		err = ledger.Release(context.Background(), conn, product.ID, qty)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "release qty %d: %v", qty, err)
	}
}

func TestReleaseIsInverseOfReserve(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "e", 1000, 7)
	ledger := NewLedger()
	ctx := context.Background()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, product.ID, 4)
	}))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return ledger.Release(ctx, tx, product.ID, 4)
	}))

	got := dbtest.LoadProduct(t, conn, product.ID)
	assert.Equal(t, 7, got.StockQuantity)
	assert.Equal(t, 0, got.SalesCount)
}

func TestReleaseFloorsSalesCountAtZero(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "f", 1000, 2)

	require.NoError(t, NewLedger().Release(context.Background(), conn, product.ID, 3))

	got := dbtest.LoadProduct(t, conn, product.ID)
	assert.Equal(t, 5, got.StockQuantity)
	assert.Equal(t, 0, got.SalesCount)
}

func TestReleaseMissingProduct(t *testing.T) {
	conn := dbtest.Open(t)

	err := NewLedger().Release(context.Background(), conn, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, "g", 1000, 5)
	ledger := NewLedger()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := conn.Transaction(func(tx *gorm.DB) error {
				return ledger.Reserve(context.Background(), tx, product.ID, 1)
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), succeeded.Load())
	assert.Equal(t, int32(7), short.Load())
	got := dbtest.LoadProduct(t, conn, product.ID)
	assert.Equal(t, 0, got.StockQuantity)
	assert.Equal(t, 5, got.SalesCount)
}
