package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/ledger"
	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type driverLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type vehicleLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
}

type activeSeatLister interface {
	ListActiveByRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) ([]models.Participation, error)
	CancelAllForRide(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error
}

type auditEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event auditlog.Event) error
}

// CreateInput captures a new ride offer.
type CreateInput struct {
	VehicleID     uuid.UUID
	DepartureCity string
	ArrivalCity   string
	DepartureAt   time.Time
	ArrivalAt     time.Time
	Price         int
	Seats         int
}

// SearchResult is a search answer. When no ride matches, NextDeparture may
// point at the closest later date on the same route.
type SearchResult struct {
	Rides         []models.Ride
	NextDeparture *time.Time
}

// Service owns the ride lifecycle: publication, search, start/finish, and
// driver-side cancellation with its refund cascade.
type Service interface {
	Create(ctx context.Context, driverID uuid.UUID, input CreateInput) (*models.Ride, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	Start(ctx context.Context, driverID, rideID uuid.UUID) (*models.Ride, error)
	Finish(ctx context.Context, driverID, rideID uuid.UUID) (*models.Ride, error)
	Cancel(ctx context.Context, driverID, rideID uuid.UUID) error
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	users    driverLoader
	vehicles vehicleLoader
	seats    activeSeatLister
	ledger   ledger.Service
	audit    auditEmitter
	now      func() time.Time
}

// NewService builds the ride service.
func NewService(
	tx txRunner,
	repo Repository,
	users driverLoader,
	vehicles vehicleLoader,
	seats activeSeatLister,
	ledgerSvc ledger.Service,
	audit auditEmitter,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ride repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if vehicles == nil {
		return nil, fmt.Errorf("vehicle loader required")
	}
	if seats == nil {
		return nil, fmt.Errorf("participation lister required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit emitter required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		users:    users,
		vehicles: vehicles,
		seats:    seats,
		ledger:   ledgerSvc,
		audit:    audit,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, driverID uuid.UUID, input CreateInput) (*models.Ride, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if err := validateCreateInput(input, s.now()); err != nil {
		return nil, err
	}

	driver, err := s.users.FindByID(ctx, driverID)
	if err != nil {
		return nil, notFoundOr(err, "driver not found")
	}
	if !driver.Role.CanDrive() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not allowed to publish rides")
	}

	vehicle, err := s.vehicles.FindByID(ctx, input.VehicleID)
	if err != nil {
		return nil, notFoundOr(err, "vehicle not found")
	}
	if vehicle.OwnerID != driverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vehicle does not belong to driver")
	}
	if input.Seats > vehicle.Seats {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "more seats offered than the vehicle has")
	}

	ride := &models.Ride{
		DriverID:      driverID,
		VehicleID:     vehicle.ID,
		DepartureCity: input.DepartureCity,
		ArrivalCity:   input.ArrivalCity,
		DepartureAt:   input.DepartureAt,
		ArrivalAt:     input.ArrivalAt,
		Price:         input.Price,
		SeatsTotal:    input.Seats,
		SeatsLeft:     input.Seats,
		Status:        enums.RideStatusScheduled,
		Ecological:    vehicle.IsElectric(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, ride); err != nil {
			return err
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditRideCreated,
			Actor:     &auditlog.ActorRef{UserID: driverID, Role: driver.Role.String()},
			SubjectID: &ride.ID,
			Data: map[string]any{
				"villeDepart":  ride.DepartureCity,
				"villeArrivee": ride.ArrivalCity,
				"prix":         ride.Price,
				"places":       ride.SeatsTotal,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

func (s *service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.DepartureCity == "" || params.ArrivalCity == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "departure and arrival cities are required")
	}
	if params.DepartureDay.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "departure date is required")
	}

	rides, err := s.repo.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Rides: rides}
	if len(rides) == 0 {
		dayEnd := params.DepartureDay.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		next, err := s.repo.NextDeparture(ctx, params.DepartureCity, params.ArrivalCity, dayEnd)
		if err != nil {
			return nil, err
		}
		result.NextDeparture = next
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ride id required")
	}
	ride, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ride not found")
	}
	return ride, nil
}

func (s *service) Start(ctx context.Context, driverID, rideID uuid.UUID) (*models.Ride, error) {
	return s.transition(ctx, driverID, rideID, enums.RideStatusScheduled, enums.RideStatusOngoing,
		func(now time.Time) map[string]any { return map[string]any{"started_at": now} },
		enums.AuditRideStarted)
}

func (s *service) Finish(ctx context.Context, driverID, rideID uuid.UUID) (*models.Ride, error) {
	return s.transition(ctx, driverID, rideID, enums.RideStatusOngoing, enums.RideStatusCompleted,
		func(now time.Time) map[string]any { return map[string]any{"finished_at": now} },
		enums.AuditRideFinished)
}

func (s *service) transition(
	ctx context.Context,
	driverID, rideID uuid.UUID,
	from, to enums.RideStatus,
	stamp func(time.Time) map[string]any,
	action enums.AuditAction,
) (*models.Ride, error) {
	if driverID == uuid.Nil || rideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id and ride id required")
	}

	var ride *models.Ride
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, rideID)
		if err != nil {
			return notFoundOr(err, "ride not found")
		}
		if current.DriverID != driverID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the driver can update this ride")
		}

		moved, err := s.repo.TransitionStatus(ctx, tx, rideID, from, to, stamp(s.now()))
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("ride is not %s", from))
		}

		if err := s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    action,
			Actor:     &auditlog.ActorRef{UserID: driverID},
			SubjectID: &rideID,
			Version:   1,
		}); err != nil {
			return err
		}

		ride, err = s.repo.WithTx(tx).FindByID(ctx, rideID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Cancel is the driver-side cancellation: every passenger still holding a
// seat gets their credits back in the same transaction that flips the ride.
func (s *service) Cancel(ctx context.Context, driverID, rideID uuid.UUID) error {
	if driverID == uuid.Nil || rideID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id and ride id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ride, err := s.repo.FindByIDForUpdate(ctx, tx, rideID)
		if err != nil {
			return notFoundOr(err, "ride not found")
		}
		if ride.DriverID != driverID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the driver can cancel this ride")
		}
		if !ride.DepartureAt.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeTooLateToCancel, "the ride has already departed")
		}

		moved, err := s.repo.TransitionStatus(ctx, tx, rideID,
			enums.RideStatusScheduled, enums.RideStatusCancelled,
			map[string]any{"cancelled_at": s.now()})
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only scheduled rides can be cancelled")
		}

		active, err := s.seats.ListActiveByRide(ctx, tx, rideID)
		if err != nil {
			return err
		}
		refunds := make([]ledger.MovementInput, 0, len(active))
		for _, participation := range active {
			refunds = append(refunds, ledger.MovementInput{
				UserID: participation.PassengerID,
				RideID: &rideID,
				Amount: participation.CreditsSpent,
				Reason: enums.CreditReasonRideRefund,
			})
		}
		if _, err := s.ledger.CreditMany(ctx, tx, refunds); err != nil {
			return err
		}
		if err := s.seats.CancelAllForRide(ctx, tx, rideID); err != nil {
			return err
		}

		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditRideCancelled,
			Actor:     &auditlog.ActorRef{UserID: driverID},
			SubjectID: &rideID,
			Data:      map[string]any{"refunds": len(refunds)},
			Version:   1,
		})
	})
}

func (s *service) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	return s.repo.ListByDriver(ctx, driverID)
}

func validateCreateInput(input CreateInput, now time.Time) error {
	switch {
	case input.VehicleID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	case input.DepartureCity == "" || input.ArrivalCity == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "departure and arrival cities are required")
	case input.Price <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	case input.Seats < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one seat must be offered")
	case input.DepartureAt.Before(now):
		return pkgerrors.New(pkgerrors.CodeValidation, "departure must be in the future")
	case !input.ArrivalAt.After(input.DepartureAt):
		return pkgerrors.New(pkgerrors.CodeValidation, "arrival must be after departure")
	}
	return nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
