package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type participationLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Participation, error)
}

type rideLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
}

type staffLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type auditEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event auditlog.Event) error
}

// SubmitInput is a passenger's rating of the driver for one booking.
type SubmitInput struct {
	ParticipationID uuid.UUID
	Rating          int
	Comment         *string
}

// ModerateInput is a staff decision on a pending review.
type ModerateInput struct {
	ReviewID uuid.UUID
	Approve  bool
}

// Service owns review submission and staff moderation. Reviews start pending
// and only reach a driver's public profile once an employee approves them.
type Service interface {
	Submit(ctx context.Context, authorID uuid.UUID, input SubmitInput) (*models.Review, error)
	Moderate(ctx context.Context, moderatorID uuid.UUID, input ModerateInput) (*models.Review, error)
	ListApprovedByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Review, error)
	ListPending(ctx context.Context) ([]models.Review, error)
	DriverRating(ctx context.Context, driverID uuid.UUID) (*RatingSummary, error)
}

type service struct {
	tx             txRunner
	repo           Repository
	participations participationLoader
	rides          rideLoader
	users          staffLoader
	audit          auditEmitter
	now            func() time.Time
}

// NewService builds the review service.
func NewService(
	tx txRunner,
	repo Repository,
	participations participationLoader,
	rides rideLoader,
	users staffLoader,
	audit auditEmitter,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if participations == nil {
		return nil, fmt.Errorf("participation loader required")
	}
	if rides == nil {
		return nil, fmt.Errorf("ride loader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit emitter required")
	}
	return &service{
		tx:             tx,
		repo:           repo,
		participations: participations,
		rides:          rides,
		users:          users,
		audit:          audit,
		now:            time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, authorID uuid.UUID, input SubmitInput) (*models.Review, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	if input.ParticipationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participation id required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	participation, err := s.participations.FindByID(ctx, input.ParticipationID)
	if err != nil {
		return nil, notFoundOr(err, "participation not found")
	}
	if participation.PassengerID != authorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the passenger can review their own booking")
	}
	if !participation.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a cancelled booking cannot be reviewed")
	}

	ride, err := s.rides.FindByID(ctx, participation.RideID)
	if err != nil {
		return nil, notFoundOr(err, "ride not found")
	}
	if ride.Status != enums.RideStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ride is not finished yet")
	}

	existing, err := s.repo.FindByParticipation(ctx, input.ParticipationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "this booking has already been reviewed")
	}

	review := &models.Review{
		ParticipationID: participation.ID,
		RideID:          ride.ID,
		AuthorID:        authorID,
		DriverID:        ride.DriverID,
		Rating:          input.Rating,
		Comment:         input.Comment,
		Status:          enums.ReviewStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, review); err != nil {
			return err
		}
		return s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditReviewSubmitted,
			Actor:     &auditlog.ActorRef{UserID: authorID},
			SubjectID: &review.ID,
			Data:      map[string]any{"note": input.Rating},
			Version:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *service) Moderate(ctx context.Context, moderatorID uuid.UUID, input ModerateInput) (*models.Review, error) {
	if moderatorID == uuid.Nil || input.ReviewID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "moderator id and review id required")
	}

	moderator, err := s.users.FindByID(ctx, moderatorID)
	if err != nil {
		return nil, notFoundOr(err, "moderator not found")
	}
	if !moderator.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff can moderate reviews")
	}

	to := enums.ReviewStatusRejected
	if input.Approve {
		to = enums.ReviewStatusApproved
	}

	var review *models.Review
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.repo.Moderate(ctx, tx, input.ReviewID, to, moderatorID, s.now())
		if err != nil {
			return err
		}
		if !updated {
			current, err := s.repo.WithTx(tx).FindByID(ctx, input.ReviewID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			if err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("review is already %s", current.Status))
		}

		if err := s.audit.Emit(ctx, tx, auditlog.Event{
			Action:    enums.AuditReviewModerated,
			Actor:     &auditlog.ActorRef{UserID: moderatorID, Role: moderator.Role.String()},
			SubjectID: &input.ReviewID,
			Data:      map[string]any{"statut": to.String()},
			Version:   1,
		}); err != nil {
			return err
		}

		review, err = s.repo.WithTx(tx).FindByID(ctx, input.ReviewID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *service) ListApprovedByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Review, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	return s.repo.ListApprovedByDriver(ctx, driverID)
}

func (s *service) ListPending(ctx context.Context) ([]models.Review, error) {
	return s.repo.ListPending(ctx)
}

func (s *service) DriverRating(ctx context.Context, driverID uuid.UUID) (*RatingSummary, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	return s.repo.DriverRating(ctx, driverID)
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
