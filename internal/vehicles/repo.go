package vehicles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/repo"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
)

// Repository manages vehicle persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, vehicle *models.Vehicle) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a vehicle repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	return r.base.DB(ctx).Create(vehicle).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.base.DB(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error) {
	var results []models.Vehicle
	if err := r.base.DB(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
