package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vehicle belongs to a driver. A ride references the vehicle used so the
// energy type can be surfaced in search results.
type Vehicle struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID          uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	Plate            string     `gorm:"column:plate;type:text;not null;uniqueIndex"`
	Brand            string     `gorm:"column:brand;type:text;not null"`
	Model            string     `gorm:"column:model;type:text;not null"`
	Color            string     `gorm:"column:color;type:text;not null"`
	Energy           string     `gorm:"column:energy;type:text;not null"`
	Seats            int        `gorm:"column:seats;not null"`
	FirstRegistered  *time.Time `gorm:"column:first_registered"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Vehicle) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// TableName keeps the original French table naming.
func (Vehicle) TableName() string { return "vehicules" }

// IsElectric reports whether the vehicle qualifies for the ecological filter.
func (v Vehicle) IsElectric() bool {
	return v.Energy == "electrique"
}
