package participations

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

// Repository manages participation persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, participation *models.Participation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Participation, error)
	FindActive(ctx context.Context, tx *gorm.DB, rideID, passengerID uuid.UUID) (*models.Participation, error)
	ListActiveByRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) ([]models.Participation, error)
	CancelAllForRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	SetValidation(ctx context.Context, tx *gorm.DB, id uuid.UUID, to enums.ValidationStatus, note *string, at time.Time) (bool, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Participation, error)
	ListDisputed(ctx context.Context) ([]models.Participation, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a participation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, participation *models.Participation) error {
	return r.base.DB(ctx).Create(participation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	var participation models.Participation
	if err := r.base.DB(ctx).First(&participation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &participation, nil
}

// FindActive returns the passenger's live participation on a ride, or nil.
// Callers hold the ride lock, so the answer stays true for the transaction.
func (r *repository) FindActive(ctx context.Context, tx *gorm.DB, rideID, passengerID uuid.UUID) (*models.Participation, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var participation models.Participation
	err := tx.WithContext(ctx).
		Where("ride_id = ? AND passenger_id = ? AND cancelled_at IS NULL", rideID, passengerID).
		First(&participation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

func (r *repository) ListActiveByRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) ([]models.Participation, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var results []models.Participation
	if err := tx.WithContext(ctx).
		Where("ride_id = ? AND cancelled_at IS NULL", rideID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repository) CancelAllForRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.WithContext(ctx).Model(&models.Participation{}).
		Where("ride_id = ? AND cancelled_at IS NULL", rideID).
		Update("cancelled_at", time.Now()).Error
}

// MarkCancelled flips the row only when it is still active.
func (r *repository) MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.WithContext(ctx).Model(&models.Participation{}).
		Where("id = ? AND cancelled_at IS NULL", id).
		Update("cancelled_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetValidation moves a pending verdict to its final state. The guard on
// 'pending' makes a second validation lose instead of double-paying.
func (r *repository) SetValidation(ctx context.Context, tx *gorm.DB, id uuid.UUID, to enums.ValidationStatus, note *string, at time.Time) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.WithContext(ctx).Model(&models.Participation{}).
		Where("id = ? AND validation_status = ?", id, enums.ValidationStatusPending).
		Updates(map[string]any{
			"validation_status": to,
			"validation_note":   note,
			"validated_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Participation, error) {
	var results []models.Participation
	if err := r.base.DB(ctx).
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListDisputed feeds the staff queue of rides flagged by passengers.
func (r *repository) ListDisputed(ctx context.Context) ([]models.Participation, error) {
	var results []models.Participation
	if err := r.base.DB(ctx).
		Where("validation_status = ?", enums.ValidationStatusDisputed).
		Order("validated_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
