package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// AuditEvent is an append-only outbox row. Events written inside a business
// transaction commit or roll back with it; a separate worker publishes them.
type AuditEvent struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Action       enums.AuditAction `gorm:"column:action;type:text;not null"`
	ActorID      *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	SubjectID    *uuid.UUID        `gorm:"column:subject_id;type:uuid"`
	Payload      json.RawMessage   `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time        `gorm:"column:published_at;index"`
	AttemptCount int               `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string           `gorm:"column:last_error"`
}

func (e *AuditEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName names the outbox table.
func (AuditEvent) TableName() string { return "audit_events" }
