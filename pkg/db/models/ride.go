package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// Ride is the core marketplace entity. SeatsLeft is authoritative and only
// ever changed through guarded updates inside a transaction.
type Ride struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	DriverID      uuid.UUID        `gorm:"column:driver_id;type:uuid;not null;index"`
	VehicleID     uuid.UUID        `gorm:"column:vehicle_id;type:uuid;not null"`
	DepartureCity string           `gorm:"column:departure_city;type:text;not null;index:idx_rides_search"`
	ArrivalCity   string           `gorm:"column:arrival_city;type:text;not null;index:idx_rides_search"`
	DepartureAt   time.Time        `gorm:"column:departure_at;not null;index:idx_rides_search"`
	ArrivalAt     time.Time        `gorm:"column:arrival_at;not null"`
	Price         int              `gorm:"column:price;not null"`
	SeatsTotal    int              `gorm:"column:seats_total;not null"`
	SeatsLeft     int              `gorm:"column:seats_left;not null"`
	Status        enums.RideStatus `gorm:"column:status;type:text;not null;default:'scheduled';index"`
	Ecological    bool             `gorm:"column:ecological;not null;default:false"`
	StartedAt     *time.Time       `gorm:"column:started_at"`
	FinishedAt    *time.Time       `gorm:"column:finished_at"`
	CancelledAt   *time.Time       `gorm:"column:cancelled_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Ride) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName keeps the original French table naming.
func (Ride) TableName() string { return "covoiturages" }
