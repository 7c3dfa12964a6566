package address

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/errors"
)

// Service checks that addresses referenced by checkout belong to the buyer.
type Service interface {
	EnsureOwned(ctx context.Context, userID, addressID uuid.UUID) error
	EnsureOwnedTx(ctx context.Context, tx *gorm.DB, userID, addressID uuid.UUID) error
}

type service struct {
	db *gorm.DB
}

// NewService builds an address book reader backed by the addresses table.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

func (s *service) EnsureOwned(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.EnsureOwnedTx(ctx, s.db, userID, addressID)
}

// EnsureOwnedTx reports NOT_FOUND when the address is missing or owned by someone else,
// so callers cannot probe other users' address ids.
func (s *service) EnsureOwnedTx(ctx context.Context, tx *gorm.DB, userID, addressID uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New(errors.CodeUnauthorized, "user required")
	}
	if addressID == uuid.Nil {
		return errors.New(errors.CodeValidation, "address id required")
	}
	if tx == nil {
		tx = s.db
	}

	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "lookup address")
	}
	if count == 0 {
		return errors.New(errors.CodeNotFound, "address not found")
	}
	return nil
}
