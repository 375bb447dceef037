package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// CreditMovement records an immutable credit lifecycle event. Amount is
// signed: negative for debits, positive for credits. The sum of a user's
// movements equals their balance.
type CreditMovement struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	RideID    *uuid.UUID                 `gorm:"column:ride_id;type:uuid;index"`
	Reason    enums.CreditMovementReason `gorm:"column:reason;type:text;not null"`
	Amount    int                        `gorm:"column:amount;not null"`
	Balance   int                        `gorm:"column:balance;not null"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (m *CreditMovement) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TableName keeps the French table naming convention.
func (CreditMovement) TableName() string { return "mouvements_credits" }
