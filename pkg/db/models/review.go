package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// Review is a passenger's rating of a driver for one participation. One
// review per participation, enforced by the unique index.
type Review struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ParticipationID uuid.UUID          `gorm:"column:participation_id;type:uuid;not null;uniqueIndex"`
	RideID          uuid.UUID          `gorm:"column:ride_id;type:uuid;not null;index"`
	AuthorID        uuid.UUID          `gorm:"column:author_id;type:uuid;not null"`
	DriverID        uuid.UUID          `gorm:"column:driver_id;type:uuid;not null;index"`
	Rating          int                `gorm:"column:rating;not null"`
	Comment         *string            `gorm:"column:comment"`
	Status          enums.ReviewStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ModeratedByID   *uuid.UUID         `gorm:"column:moderated_by;type:uuid"`
	ModeratedAt     *time.Time         `gorm:"column:moderated_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName keeps the original French table naming.
func (Review) TableName() string { return "avis" }
