package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/ledger"
	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rideLister interface {
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Ride, error)
}

type participationLister interface {
	ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Participation, error)
}

type auditEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event auditlog.Event) error
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Pseudo   string
	Email    string
	Password string
}

// UpdateProfileInput carries the optional profile fields a user can change.
// Nil pointers leave the column untouched.
type UpdateProfileInput struct {
	Photo       *string
	Preferences *string
}

// HistoryKind narrows the travel record to one side of the seat. The empty
// kind returns both sides.
type HistoryKind string

const (
	HistoryAll          HistoryKind = ""
	HistoryConducted    HistoryKind = "conducted"
	HistoryParticipated HistoryKind = "participated"
)

// History is a user's travel record, split by side of the seat.
type History struct {
	AsDriver    []models.Ride
	AsPassenger []models.Participation
}

// Service owns accounts: signup with the welcome credit grant, profiles,
// role switching, and the travel history.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error)
	History(ctx context.Context, id uuid.UUID, kind HistoryKind) (*History, error)
	CreditHistory(ctx context.Context, id uuid.UUID) ([]models.CreditMovement, error)

	AdminService
}

type service struct {
	tx             txRunner
	repo           Repository
	rides          rideLister
	participations participationLister
	ledger         ledger.Service
	audit          auditEmitter
	passwordCfg    config.PasswordConfig
	signupCredits  int
	commission     int
	now            func() time.Time
}

// NewService builds the user service. signupCredits is the welcome grant and
// commission is the flat fee used by the earnings reports.
func NewService(
	tx txRunner,
	repo Repository,
	rides rideLister,
	participations participationLister,
	ledgerSvc ledger.Service,
	audit auditEmitter,
	passwordCfg config.PasswordConfig,
	marketplace config.MarketplaceConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if rides == nil {
		return nil, fmt.Errorf("ride lister required")
	}
	if participations == nil {
		return nil, fmt.Errorf("participation lister required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit emitter required")
	}
	if marketplace.SignupCredits < 0 || marketplace.CommissionCredits < 0 {
		return nil, fmt.Errorf("credit amounts cannot be negative")
	}
	return &service{
		tx:             tx,
		repo:           repo,
		rides:          rides,
		participations: participations,
		ledger:         ledgerSvc,
		audit:          audit,
		passwordCfg:    passwordCfg,
		signupCredits:  marketplace.SignupCredits,
		commission:     marketplace.CommissionCredits,
		now:            time.Now,
	}, nil
}

// Register creates the account and grants the welcome credits in the same
// transaction, so a failed grant never leaves a zero-credit account behind.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Pseudo = strings.TrimSpace(input.Pseudo)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByEmail(ctx, input.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}
	if existing, err := s.repo.FindByPseudo(ctx, input.Pseudo); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pseudo already taken")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Pseudo:       input.Pseudo,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         enums.UserRolePassenger,
		Status:       enums.UserStatusActive,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email or pseudo already registered")
			}
			return err
		}
		if s.signupCredits > 0 {
			if _, err := s.ledger.Credit(ctx, tx, ledger.MovementInput{
				UserID: user.ID,
				Amount: s.signupCredits,
				Reason: enums.CreditReasonSignupGrant,
			}); err != nil {
				return err
			}
			user.Credits = s.signupCredits
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditUserRegistered,
			Actor:     &auditlog.ActorRef{UserID: user.ID, Role: user.Role.String()},
			SubjectID: &user.ID,
			Data:      map[string]any{"pseudo": user.Pseudo},
			Version:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	fields := map[string]any{}
	if input.Photo != nil {
		fields["photo"] = input.Photo
	}
	if input.Preferences != nil {
		fields["preferences"] = input.Preferences
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if err := s.repo.UpdateProfile(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// UpdateRole lets a member switch between the travel roles. Staff roles are
// never reachable this way.
func (s *service) UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	switch role {
	case enums.UserRolePassenger, enums.UserRoleDriver, enums.UserRolePassengerDriver:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be a travel role")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if user.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff accounts cannot switch to travel roles")
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (s *service) History(ctx context.Context, id uuid.UUID, kind HistoryKind) (*History, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	switch kind {
	case HistoryAll, HistoryConducted, HistoryParticipated:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be participated or conducted")
	}

	history := &History{}
	if kind == HistoryAll || kind == HistoryConducted {
		asDriver, err := s.rides.ListByDriver(ctx, id)
		if err != nil {
			return nil, err
		}
		history.AsDriver = asDriver
	}
	if kind == HistoryAll || kind == HistoryParticipated {
		asPassenger, err := s.participations.ListByPassenger(ctx, id)
		if err != nil {
			return nil, err
		}
		history.AsPassenger = asPassenger
	}
	return history, nil
}

func (s *service) CreditHistory(ctx context.Context, id uuid.UUID) ([]models.CreditMovement, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.ledger.History(ctx, id)
}

func validateRegisterInput(input RegisterInput) error {
	switch {
	case len(input.Pseudo) < 3:
		return pkgerrors.New(pkgerrors.CodeValidation, "pseudo must be at least 3 characters")
	case !strings.Contains(input.Email, "@"):
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	case len(input.Password) < 8:
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	return nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
