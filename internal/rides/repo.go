package rides

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

// SearchParams narrows a ride search. DepartureDay is interpreted as the
// whole calendar day in UTC.
type SearchParams struct {
	DepartureCity  string
	ArrivalCity    string
	DepartureDay   time.Time
	EcologicalOnly bool
	MaxPrice       *int
	MaxDuration    *time.Duration
	MinSeats       int
}

// Repository manages ride persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ride *models.Ride) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ride, error)
	Search(ctx context.Context, params SearchParams) ([]models.Ride, error)
	NextDeparture(ctx context.Context, departureCity, arrivalCity string, after time.Time) (*time.Time, error)
	TakeSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) (bool, error)
	ReleaseSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error
	TransitionStatus(ctx context.Context, tx *gorm.DB, rideID uuid.UUID, from, to enums.RideStatus, stamp map[string]any) (bool, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ride repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, ride *models.Ride) error {
	return r.base.DB(ctx).Create(ride).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	if err := r.base.DB(ctx).First(&ride, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ride, nil
}

// FindByIDForUpdate locks the ride row for the rest of the transaction. Lock
// order is always ride first, then users.
func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ride, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var ride models.Ride
	if err := repo.LockForUpdate(tx.WithContext(ctx)).First(&ride, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ride, nil
}

func (r *repository) Search(ctx context.Context, params SearchParams) ([]models.Ride, error) {
	dayStart := params.DepartureDay.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := r.base.DB(ctx).
		Where("departure_city = ?", params.DepartureCity).
		Where("arrival_city = ?", params.ArrivalCity).
		Where("departure_at >= ? AND departure_at < ?", dayStart, dayEnd).
		Where("status = ?", enums.RideStatusScheduled).
		Where("seats_left >= ?", maxInt(params.MinSeats, 1))

	if params.EcologicalOnly {
		query = query.Where("ecological = ?", true)
	}
	if params.MaxPrice != nil {
		query = query.Where("price <= ?", *params.MaxPrice)
	}

	var results []models.Ride
	if err := query.Order("departure_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}

	if params.MaxDuration != nil {
		filtered := results[:0]
		for _, ride := range results {
			if ride.ArrivalAt.Sub(ride.DepartureAt) <= *params.MaxDuration {
				filtered = append(filtered, ride)
			}
		}
		results = filtered
	}
	return results, nil
}

// NextDeparture finds the closest future ride on the same route, used to
// suggest an alternative date when a search comes back empty.
func (r *repository) NextDeparture(ctx context.Context, departureCity, arrivalCity string, after time.Time) (*time.Time, error) {
	var ride models.Ride
	err := r.base.DB(ctx).
		Where("departure_city = ?", departureCity).
		Where("arrival_city = ?", arrivalCity).
		Where("departure_at > ?", after).
		Where("status = ?", enums.RideStatusScheduled).
		Where("seats_left >= 1").
		Order("departure_at ASC").
		First(&ride).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ride.DepartureAt, nil
}

// TakeSeat decrements seats_left if one is available. Returns false when the
// ride is full or no longer open.
func (r *repository) TakeSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	result := tx.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND seats_left >= 1 AND status = ?", rideID, enums.RideStatusScheduled).
		Update("seats_left", gorm.Expr("seats_left - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ReleaseSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ?", rideID).
		Update("seats_left", gorm.Expr("seats_left + 1")).Error
}

// TransitionStatus moves the ride between lifecycle states. The guard on the
// current status makes double transitions lose cleanly.
func (r *repository) TransitionStatus(ctx context.Context, tx *gorm.DB, rideID uuid.UUID, from, to enums.RideStatus, stamp map[string]any) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	updates := map[string]any{"status": to}
	for column, value := range stamp {
		updates[column] = value
	}
	result := tx.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND status = ?", rideID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error) {
	var results []models.Ride
	if err := r.base.DB(ctx).
		Where("driver_id = ?", driverID).
		Order("departure_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
