package participations

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

type rideStore interface {
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ride, error)
	TakeSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) (bool, error)
	ReleaseSeat(ctx context.Context, tx *gorm.DB, rideID uuid.UUID) error
}

type passengerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type auditEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event auditlog.Event) error
}

// ValidateInput is a passenger's post-ride verdict.
type ValidateInput struct {
	Outcome enums.ValidationStatus
	Note    *string
}

// Service owns seat reservation, passenger-side cancellation, and post-ride
// validation with the driver payout.
type Service interface {
	Join(ctx context.Context, passengerID, rideID uuid.UUID) (*models.Participation, error)
	Cancel(ctx context.Context, passengerID, participationID uuid.UUID) error
	Validate(ctx context.Context, passengerID, participationID uuid.UUID, input ValidateInput) (*models.Participation, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Participation, error)
	ListDisputed(ctx context.Context) ([]models.Participation, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	rides      rideStore
	users      passengerLoader
	ledger     ledger.Service
	audit      auditEmitter
	commission int
	now        func() time.Time
}

// NewService builds the participation service. Commission is the flat credit
// fee the platform keeps from every driver payout.
func NewService(
	tx txRunner,
	repo Repository,
	rides rideStore,
	users passengerLoader,
	ledgerSvc ledger.Service,
	audit auditEmitter,
	commission int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("participation repository required")
	}
	if rides == nil {
		return nil, fmt.Errorf("ride store required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit emitter required")
	}
	if commission < 0 {
		return nil, fmt.Errorf("commission cannot be negative")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		rides:      rides,
		users:      users,
		ledger:     ledgerSvc,
		audit:      audit,
		commission: commission,
		now:        time.Now,
	}, nil
}

// Join books one seat. Everything happens under the ride lock: the seat
// guard, the debit, and the participation row commit as one unit.
func (s *service) Join(ctx context.Context, passengerID, rideID uuid.UUID) (*models.Participation, error) {
	if passengerID == uuid.Nil || rideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "passenger id and ride id required")
	}

	var participation *models.Participation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ride, err := s.rides.FindByIDForUpdate(ctx, tx, rideID)
		if err != nil {
			return notFoundOr(err, "ride not found")
		}
		if ride.Status != enums.RideStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ride is not open for booking")
		}
		if ride.DriverID == passengerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "drivers cannot book their own ride")
		}

		passenger, err := s.users.FindByID(ctx, passengerID)
		if err != nil {
			return notFoundOr(err, "passenger not found")
		}
		if !passenger.Role.CanRide() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "account is not allowed to book rides")
		}

		existing, err := s.repo.FindActive(ctx, tx, rideID, passengerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "already booked on this ride")
		}

		taken, err := s.rides.TakeSeat(ctx, tx, rideID)
		if err != nil {
			return err
		}
		if !taken {
			return pkgerrors.New(pkgerrors.CodeNoSeatsAvailable, "no seats left on this ride")
		}

		if _, err := s.ledger.Debit(ctx, tx, ledger.MovementInput{
			UserID: passengerID,
			RideID: &rideID,
			Amount: ride.Price,
			Reason: enums.CreditReasonRideDebit,
		}); err != nil {
			return err
		}

		participation = &models.Participation{
			RideID:           rideID,
			PassengerID:      passengerID,
			CreditsSpent:     ride.Price,
			ValidationStatus: enums.ValidationStatusPending,
		}
		if err := s.repo.WithTx(tx).Create(ctx, participation); err != nil {
			return err
		}

		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditRideJoined,
			Actor:     &auditlog.ActorRef{UserID: passengerID, Role: passenger.Role.String()},
			SubjectID: &rideID,
			Data:      map[string]any{"prix": ride.Price},
			Version:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return participation, nil
}

// Cancel gives the seat and the credits back, as long as the ride has not
// started yet.
func (s *service) Cancel(ctx context.Context, passengerID, participationID uuid.UUID) error {
	if passengerID == uuid.Nil || participationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "passenger id and participation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		participation, err := s.repo.WithTx(tx).FindByID(ctx, participationID)
		if err != nil {
			return notFoundOr(err, "booking not found")
		}
		if participation.PassengerID != passengerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another passenger")
		}
		if !participation.IsActive() {
			return pkgerrors.New(pkgerrors.CodeConflict, "booking already cancelled")
		}

		rideID := participation.RideID
		ride, err := s.rides.FindByIDForUpdate(ctx, tx, rideID)
		if err != nil {
			return notFoundOr(err, "ride not found")
		}

		if ride.Status != enums.RideStatusScheduled || !ride.DepartureAt.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeTooLateToCancel, "the ride has already departed")
		}

		cancelled, err := s.repo.MarkCancelled(ctx, tx, participation.ID, s.now())
		if err != nil {
			return err
		}
		if !cancelled {
			return pkgerrors.New(pkgerrors.CodeConflict, "booking already cancelled")
		}

		if _, err := s.ledger.Credit(ctx, tx, ledger.MovementInput{
			UserID: passengerID,
			RideID: &rideID,
			Amount: participation.CreditsSpent,
			Reason: enums.CreditReasonRideRefund,
		}); err != nil {
			return err
		}
		if err := s.rides.ReleaseSeat(ctx, tx, rideID); err != nil {
			return err
		}

		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditRideLeft,
			Actor:     &auditlog.ActorRef{UserID: passengerID},
			SubjectID: &rideID,
			Data:      map[string]any{"rembourse": participation.CreditsSpent},
			Version:   1,
		})
	})
}

// Validate records the passenger's verdict on a completed ride. A confirmed
// ride pays the driver the seat price minus the platform commission; a
// disputed one freezes the payout for staff review.
func (s *service) Validate(ctx context.Context, passengerID, participationID uuid.UUID, input ValidateInput) (*models.Participation, error) {
	if passengerID == uuid.Nil || participationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "passenger id and participation id required")
	}
	if input.Outcome != enums.ValidationStatusConfirmed && input.Outcome != enums.ValidationStatusDisputed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome must be confirmed or disputed")
	}
	if input.Outcome == enums.ValidationStatusDisputed && (input.Note == nil || *input.Note == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required when disputing a ride")
	}

	var result *models.Participation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		participation, err := s.repo.WithTx(tx).FindByID(ctx, participationID)
		if err != nil {
			return notFoundOr(err, "booking not found")
		}
		if participation.PassengerID != passengerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another passenger")
		}
		if !participation.IsActive() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking was cancelled")
		}

		rideID := participation.RideID
		ride, err := s.rides.FindByIDForUpdate(ctx, tx, rideID)
		if err != nil {
			return notFoundOr(err, "ride not found")
		}
		if ride.Status != enums.RideStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ride is not finished yet")
		}

		updated, err := s.repo.SetValidation(ctx, tx, participation.ID, input.Outcome, input.Note, s.now())
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "ride already validated")
		}

		action := enums.AuditRideValidated
		if input.Outcome == enums.ValidationStatusConfirmed {
			if payout := participation.CreditsSpent - s.commission; payout > 0 {
				if _, err := s.ledger.Credit(ctx, tx, ledger.MovementInput{
					UserID: ride.DriverID,
					RideID: &rideID,
					Amount: payout,
					Reason: enums.CreditReasonDriverPayout,
				}); err != nil {
					return err
				}
			}
		} else {
			action = enums.AuditRideDisputed
		}

		if err := s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    action,
			Actor:     &auditlog.ActorRef{UserID: passengerID},
			SubjectID: &rideID,
			Data:      map[string]any{"statut": input.Outcome.String()},
			Version:   1,
		}); err != nil {
			return err
		}

		result, err = s.repo.WithTx(tx).FindByID(ctx, participation.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Participation, error) {
	if passengerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "passenger id required")
	}
	return s.repo.ListByPassenger(ctx, passengerID)
}

func (s *service) ListDisputed(ctx context.Context) ([]models.Participation, error) {
	return s.repo.ListDisputed(ctx)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
