package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/repo"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
)

// DailyCount is one point of a per-day activity series.
type DailyCount struct {
	Day   string
	Count int64
}

// DailyCredits is one point of the per-day platform earnings series.
type DailyCredits struct {
	Day     string
	Credits int64
}

// Repository manages user persistence and the admin reporting queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPseudo(ctx context.Context, pseudo string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.UserStatus, fields map[string]any) (bool, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	RidesPerDay(ctx context.Context, from, to time.Time) ([]DailyCount, error)
	CreditsEarnedPerDay(ctx context.Context, commission int, from, to time.Time) ([]DailyCredits, error)
	TotalCreditsEarned(ctx context.Context, commission int) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a user repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.base.DB(ctx).Create(user).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.base.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail returns nil when no account uses the address.
func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.base.DB(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByPseudo returns nil when the pseudo is free.
func (r *repository) FindByPseudo(ctx context.Context, pseudo string) (*models.User, error) {
	var user models.User
	err := r.base.DB(ctx).Where("pseudo = ?", pseudo).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// SetStatus flips the account status only when it still holds the expected
// one, so two admins racing on the same account cannot double-apply.
func (r *repository) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to enums.UserStatus, fields map[string]any) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	updates := map[string]any{"status": to}
	for column, value := range fields {
		updates[column] = value
	}
	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// RidesPerDay groups published rides by departure date for the admin chart.
func (r *repository) RidesPerDay(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	var results []DailyCount
	err := r.base.DB(ctx).Model(&models.Ride{}).
		Select("DATE(departure_at) AS day, COUNT(*) AS count").
		Where("departure_at >= ? AND departure_at < ?", from, to).
		Group("DATE(departure_at)").
		Order("day ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// CreditsEarnedPerDay sums the platform commission over confirmed bookings,
// grouped by validation date. The commission is capped at the seat price so a
// cheap ride never earns more than the passenger paid.
func (r *repository) CreditsEarnedPerDay(ctx context.Context, commission int, from, to time.Time) ([]DailyCredits, error) {
	var results []DailyCredits
	err := r.base.DB(ctx).Model(&models.Participation{}).
		Select("DATE(validated_at) AS day, "+
			"SUM(CASE WHEN credits_spent < ? THEN credits_spent ELSE ? END) AS credits",
			commission, commission).
		Where("validation_status = ? AND validated_at >= ? AND validated_at < ?",
			enums.ValidationStatusConfirmed, from, to).
		Group("DATE(validated_at)").
		Order("day ASC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repository) TotalCreditsEarned(ctx context.Context, commission int) (int64, error) {
	var total *int64
	err := r.base.DB(ctx).Model(&models.Participation{}).
		Select("SUM(CASE WHEN credits_spent < ? THEN credits_spent ELSE ? END)",
			commission, commission).
		Where("validation_status = ?", enums.ValidationStatusConfirmed).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
