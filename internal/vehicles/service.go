package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

// validEnergies are the accepted energy labels for a vehicle. Only
// "electrique" marks rides as ecological.
var validEnergies = []string{"electrique", "hybride", "essence", "diesel"}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ownerLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type auditEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event auditlog.Event) error
}

// RegisterInput describes a vehicle to attach to a driver's account.
type RegisterInput struct {
	Plate           string
	Brand           string
	Model           string
	Color           string
	Energy          string
	Seats           int
	FirstRegistered *time.Time
}

// Service owns vehicle registration and listing for drivers.
type Service interface {
	Register(ctx context.Context, ownerID uuid.UUID, input RegisterInput) (*models.Vehicle, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error)
}

type service struct {
	tx    txRunner
	repo  Repository
	users ownerLoader
	audit auditEmitter
}

// NewService builds the vehicle service.
func NewService(tx txRunner, repo Repository, users ownerLoader, audit auditEmitter) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("vehicle repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit emitter required")
	}
	return &service{tx: tx, repo: repo, users: users, audit: audit}, nil
}

func (s *service) Register(ctx context.Context, ownerID uuid.UUID, input RegisterInput) (*models.Vehicle, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, notFoundOr(err, "owner not found")
	}
	if !owner.Role.CanDrive() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not allowed to register vehicles")
	}

	vehicle := &models.Vehicle{
		OwnerID:         ownerID,
		Plate:           normalizePlate(input.Plate),
		Brand:           strings.TrimSpace(input.Brand),
		Model:           strings.TrimSpace(input.Model),
		Color:           strings.TrimSpace(input.Color),
		Energy:          input.Energy,
		Seats:           input.Seats,
		FirstRegistered: input.FirstRegistered,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, vehicle); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a vehicle with this plate is already registered")
			}
			return err
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditVehicleRegistered,
			Actor:     &auditlog.ActorRef{UserID: ownerID, Role: owner.Role.String()},
			SubjectID: &vehicle.ID,
			Data:      map[string]any{"immatriculation": vehicle.Plate},
			Version:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle id required")
	}
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "vehicle not found")
	}
	return vehicle, nil
}

func (s *service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func validateRegisterInput(input RegisterInput) error {
	switch {
	case strings.TrimSpace(input.Plate) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "plate required")
	case strings.TrimSpace(input.Brand) == "" || strings.TrimSpace(input.Model) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "brand and model required")
	case input.Seats < 1 || input.Seats > 8:
		return pkgerrors.New(pkgerrors.CodeValidation, "seats must be between 1 and 8")
	}
	for _, energy := range validEnergies {
		if input.Energy == energy {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("energy must be one of %s", strings.Join(validEnergies, ", ")))
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
