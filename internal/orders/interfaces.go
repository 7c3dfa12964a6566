package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
	"github.com/angelmondragon/checkout-backend/pkg/pagination"
)

// StatusGuard restricts a status UPDATE to rows still in an expected state.
type StatusGuard struct {
	From            []enums.OrderStatus
	PaymentStatuses []enums.PaymentStatus
}

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, guard StatusGuard, to enums.OrderStatus, updates map[string]any) (bool, error)
	SettlePayment(ctx context.Context, intentID string, to enums.PaymentStatus) (bool, error)
}
