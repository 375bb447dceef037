package reviews

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

// Repository manages review persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	FindByParticipation(ctx context.Context, participationID uuid.UUID) (*models.Review, error)
	ListApprovedByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Review, error)
	ListPending(ctx context.Context) ([]models.Review, error)
	Moderate(ctx context.Context, tx *gorm.DB, id uuid.UUID, to enums.ReviewStatus, moderatorID uuid.UUID, at time.Time) (bool, error)
	DriverRating(ctx context.Context, driverID uuid.UUID) (*RatingSummary, error)
}

// RatingSummary is the driver's public score.
type RatingSummary struct {
	Average float64
	Count   int64
}

type repository struct {
	base repo.Base
}

// NewRepository returns a review repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.base.DB(ctx).Create(review).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.base.DB(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByParticipation returns the review left for a booking, or nil.
func (r *repository) FindByParticipation(ctx context.Context, participationID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.base.DB(ctx).
		Where("participation_id = ?", participationID).
		First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) ListApprovedByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Review, error) {
	var results []models.Review
	if err := r.base.DB(ctx).
		Where("driver_id = ? AND status = ?", driverID, enums.ReviewStatusApproved).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListPending feeds the staff moderation queue, oldest first.
func (r *repository) ListPending(ctx context.Context) ([]models.Review, error) {
	var results []models.Review
	if err := r.base.DB(ctx).
		Where("status = ?", enums.ReviewStatusPending).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Moderate settles a pending review. The guard on 'pending' makes a second
// moderation lose instead of flip-flopping the published state.
func (r *repository) Moderate(ctx context.Context, tx *gorm.DB, id uuid.UUID, to enums.ReviewStatus, moderatorID uuid.UUID, at time.Time) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.WithContext(ctx).Model(&models.Review{}).
		Where("id = ? AND status = ?", id, enums.ReviewStatusPending).
		Updates(map[string]any{
			"status":       to,
			"moderated_by": moderatorID,
			"moderated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DriverRating averages approved reviews only, so a rejected rating never
// drags the public score.
func (r *repository) DriverRating(ctx context.Context, driverID uuid.UUID) (*RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := r.base.DB(ctx).Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("driver_id = ? AND status = ?", driverID, enums.ReviewStatusApproved).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	summary := &RatingSummary{Count: row.Count}
	if row.Average != nil {
		summary.Average = *row.Average
	}
	return summary, nil
}
