package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-backend/pkg/enums"
)

// PendingPaymentEvent stores a gateway event that arrived before its order existed.
type PendingPaymentEvent struct {
	ID              uuid.UUID                       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID         string                          `gorm:"column:event_id;not null;uniqueIndex"`
	EventType       string                          `gorm:"column:event_type;not null"`
	PaymentIntentID string                          `gorm:"column:payment_intent_id;not null"`
	Status          enums.PendingPaymentEventStatus `gorm:"column:status;not null"`
	Attempts        int                             `gorm:"column:attempts;not null;default:0"`
	LastError       *string                         `gorm:"column:last_error"`
	Payload         json.RawMessage                 `gorm:"column:payload;type:jsonb;not null"`
	AppliedAt       *time.Time                      `gorm:"column:applied_at"`
	CreatedAt       time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}
