package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
)

// Repository manages persistence for credit movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.CreditMovement) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CreditMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.CreditMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CreditMovement, error) {
	var movements []models.CreditMovement
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
