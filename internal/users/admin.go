package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/security"
)

const tempPasswordLength = 16

// CreateEmployeeInput describes a staff account opened by an administrator.
type CreateEmployeeInput struct {
	Pseudo string
	Email  string
}

// CreatedEmployee carries the new account plus its one-time password. The
// password is never stored in clear, so this is the only time it is visible.
type CreatedEmployee struct {
	User         *models.User
	TempPassword string
}

// PlatformStats is the admin dashboard payload.
type PlatformStats struct {
	RidesPerDay   []DailyCount
	CreditsPerDay []DailyCredits
	CreditsTotal  int64
}

// AdminService groups the operations reserved to administrators.
type AdminService interface {
	Suspend(ctx context.Context, adminID, userID uuid.UUID) error
	Reactivate(ctx context.Context, adminID, userID uuid.UUID) error
	CreateEmployee(ctx context.Context, adminID uuid.UUID, input CreateEmployeeInput) (*CreatedEmployee, error)
	Stats(ctx context.Context, adminID uuid.UUID, from, to time.Time) (*PlatformStats, error)
}

func (s *service) Suspend(ctx context.Context, adminID, userID uuid.UUID) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if adminID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "administrators cannot suspend themselves")
	}

	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user not found")
	}
	if target.Role == enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "administrator accounts cannot be suspended")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := s.repo.SetStatus(ctx, tx, userID,
			enums.UserStatusActive, enums.UserStatusSuspended,
			map[string]any{"suspended_at": s.now(), "suspended_by": adminID})
		if err != nil {
			return err
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account is already suspended")
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditUserSuspended,
			Actor:     &auditlog.ActorRef{UserID: adminID, Role: admin.Role.String()},
			SubjectID: &userID,
			Version:   1,
		})
	})
}

func (s *service) Reactivate(ctx context.Context, adminID, userID uuid.UUID) error {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		flipped, err := s.repo.SetStatus(ctx, tx, userID,
			enums.UserStatusSuspended, enums.UserStatusActive,
			map[string]any{"suspended_at": nil, "suspended_by": nil})
		if err != nil {
			return err
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account is not suspended")
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditUserReactivated,
			Actor:     &auditlog.ActorRef{UserID: adminID, Role: admin.Role.String()},
			SubjectID: &userID,
			Version:   1,
		})
	})
}

// CreateEmployee opens a moderation account with a generated one-time
// password the admin hands over out of band.
func (s *service) CreateEmployee(ctx context.Context, adminID uuid.UUID, input CreateEmployeeInput) (*CreatedEmployee, error) {
	admin, err := s.requireAdmin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	input.Pseudo = strings.TrimSpace(input.Pseudo)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if len(input.Pseudo) < 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pseudo must be at least 3 characters")
	}
	if !strings.Contains(input.Email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return nil, err
	}

	employee := &models.User{
		Pseudo:       input.Pseudo,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         enums.UserRoleEmployee,
		Status:       enums.UserStatusActive,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, employee); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email or pseudo already registered")
			}
			return err
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditEmployeeCreated,
			Actor:     &auditlog.ActorRef{UserID: adminID, Role: admin.Role.String()},
			SubjectID: &employee.ID,
			Data:      map[string]any{"pseudo": employee.Pseudo},
			Version:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedEmployee{User: employee, TempPassword: tempPassword}, nil
}

func (s *service) Stats(ctx context.Context, adminID uuid.UUID, from, to time.Time) (*PlatformStats, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "the reporting window is empty")
	}

	ridesPerDay, err := s.repo.RidesPerDay(ctx, from, to)
	if err != nil {
		return nil, err
	}
	creditsPerDay, err := s.repo.CreditsEarnedPerDay(ctx, s.commission, from, to)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.TotalCreditsEarned(ctx, s.commission)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		RidesPerDay:   ridesPerDay,
		CreditsPerDay: creditsPerDay,
		CreditsTotal:  total,
	}, nil
}

func (s *service) requireAdmin(ctx context.Context, adminID uuid.UUID) (*models.User, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id required")
	}
	admin, err := s.repo.FindByID(ctx, adminID)
	if err != nil {
		return nil, notFoundOr(err, "admin not found")
	}
	if admin.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator access required")
	}
	return admin, nil
}
