package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/checkout-backend/pkg/db/models"
	"github.com/angelmondragon/checkout-backend/pkg/enums"
)

// PendingEventRepository stores gateway events that arrived before their order.
type PendingEventRepository interface {
	WithTx(tx *gorm.DB) PendingEventRepository
	Queue(ctx context.Context, event *models.PendingPaymentEvent) (bool, error)
	ListQueued(ctx context.Context, limit int) ([]models.PendingPaymentEvent, error)
	MarkApplied(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordAttempt(ctx context.Context, id uuid.UUID, lastError string, giveUp bool) error
}

type pendingRepository struct {
	db *gorm.DB
}

func NewPendingEventRepository(db *gorm.DB) PendingEventRepository {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) WithTx(tx *gorm.DB) PendingEventRepository {
	if tx == nil {
		return r
	}
	return &pendingRepository{db: tx}
}

// Queue inserts the event unless one with the same gateway event id exists.
// The boolean reports whether a row was written.
func (r *pendingRepository) Queue(ctx context.Context, event *models.PendingPaymentEvent) (bool, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = enums.PendingPaymentEventQueued
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *pendingRepository) ListQueued(ctx context.Context, limit int) ([]models.PendingPaymentEvent, error) {
	var rows []models.PendingPaymentEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PendingPaymentEventQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pendingRepository) MarkApplied(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PendingPaymentEvent{}).
		Where("id = ? AND status = ?", id, enums.PendingPaymentEventQueued).
		Updates(map[string]any{
			"status":     enums.PendingPaymentEventApplied,
			"applied_at": at,
			"updated_at": at,
		}).Error
}

// RecordAttempt bumps the attempt counter; giveUp parks the event as failed.
func (r *pendingRepository) RecordAttempt(ctx context.Context, id uuid.UUID, lastError string, giveUp bool) error {
	updates := map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	}
	if giveUp {
		updates["status"] = enums.PendingPaymentEventFailed
	}
	return r.db.WithContext(ctx).
		Model(&models.PendingPaymentEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}
