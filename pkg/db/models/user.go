package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// User represents the canonical identity entity. Credits are the platform
// currency; every change to the balance gets a matching CreditMovement row.
type User struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Pseudo        string           `gorm:"column:pseudo;type:text;not null;uniqueIndex"`
	Email         string           `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash  string           `gorm:"column:password_hash;not null"`
	Role          enums.UserRole   `gorm:"column:role;type:text;not null;default:'passager'"`
	Status        enums.UserStatus `gorm:"column:status;type:text;not null;default:'actif'"`
	Credits       int              `gorm:"column:credits;not null;default:0"`
	Photo         *string          `gorm:"column:photo"`
	Preferences   *string          `gorm:"column:preferences;type:text"`
	LastLoginAt   *time.Time       `gorm:"column:last_login_at"`
	SuspendedAt   *time.Time       `gorm:"column:suspended_at"`
	SuspendedByID *uuid.UUID       `gorm:"column:suspended_by;type:uuid"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the ID client-side so the model works on every dialect.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// TableName keeps the original French table naming.
func (User) TableName() string { return "utilisateurs" }
