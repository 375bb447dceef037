package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

// Service moves credits between accounts. Every mutation runs inside the
// caller's transaction: the balance update and the movement row commit
// together or not at all.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.CreditMovement, error)
	Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.CreditMovement, error)
	CreditMany(ctx context.Context, tx *gorm.DB, inputs []MovementInput) ([]models.CreditMovement, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.CreditMovement, error)
}

// MovementInput describes one balance change. Amount is always positive; the
// operation decides the sign.
type MovementInput struct {
	UserID uuid.UUID
	RideID *uuid.UUID
	Amount int
	Reason enums.CreditMovementReason
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.CreditMovement, error) {
	if err := validateInput(tx, input); err != nil {
		return nil, err
	}

	// Guarded decrement. The WHERE clause is the invariant: a balance can
	// never go below zero no matter how many debits race.
	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credits >= ?", input.UserID, input.Amount).
		Update("credits", gorm.Expr("credits - ?", input.Amount))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		exists, err := userExists(ctx, tx, input.UserID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "not enough credits")
	}

	return s.recordMovement(ctx, tx, input, -input.Amount)
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.CreditMovement, error) {
	if err := validateInput(tx, input); err != nil {
		return nil, err
	}

	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", input.UserID).
		Update("credits", gorm.Expr("credits + ?", input.Amount))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	return s.recordMovement(ctx, tx, input, input.Amount)
}

// CreditMany refunds a batch of users in one pass. Used by driver-side ride
// cancellation where every active passenger gets their credits back.
func (s *service) CreditMany(ctx context.Context, tx *gorm.DB, inputs []MovementInput) ([]models.CreditMovement, error) {
	movements := make([]models.CreditMovement, 0, len(inputs))
	for _, input := range inputs {
		movement, err := s.Credit(ctx, tx, input)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *movement)
	}
	return movements, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]models.CreditMovement, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) recordMovement(ctx context.Context, tx *gorm.DB, input MovementInput, signedAmount int) (*models.CreditMovement, error) {
	balance, err := balanceOf(ctx, tx, input.UserID)
	if err != nil {
		return nil, err
	}
	movement := &models.CreditMovement{
		UserID:  input.UserID,
		RideID:  input.RideID,
		Reason:  input.Reason,
		Amount:  signedAmount,
		Balance: balance,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

func validateInput(tx *gorm.DB, input MovementInput) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement reason")
	}
	return nil
}

func userExists(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func balanceOf(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	var user models.User
	if err := tx.WithContext(ctx).
		Select("credits").
		First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.Credits, nil
}
