package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// Participation links a passenger to a ride. CreditsSpent freezes the price
// paid at join time so later price edits never change refunds or payouts.
// At most one active (non-cancelled) row per (ride, passenger) pair; the
// service enforces that under the ride row lock.
type Participation struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RideID           uuid.UUID              `gorm:"column:ride_id;type:uuid;not null;index:idx_participation_ride"`
	PassengerID      uuid.UUID              `gorm:"column:passenger_id;type:uuid;not null;index:idx_participation_passenger"`
	CreditsSpent     int                    `gorm:"column:credits_spent;not null"`
	ValidationStatus enums.ValidationStatus `gorm:"column:validation_status;type:text;not null;default:'pending'"`
	ValidationNote   *string                `gorm:"column:validation_note"`
	CancelledAt      *time.Time             `gorm:"column:cancelled_at"`
	ValidatedAt      *time.Time             `gorm:"column:validated_at"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Participation) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName keeps the original French table naming.
func (Participation) TableName() string { return "participations" }

// IsActive reports whether the passenger still holds a seat.
func (p Participation) IsActive() bool {
	return p.CancelledAt == nil
}
