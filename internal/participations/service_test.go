package participations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/ledger"
	"github.com/ecoride-app/ecoride-backend/internal/rides"
	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

const testCommission = 2

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type userLoader struct {
	db *gorm.DB
}

func (l userLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:participations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Ride{},
		&models.Participation{},
		&models.CreditMovement{},
		&models.AuditEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	audit := auditlog.NewService(auditlog.NewRepository(db), nil, nil)

	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		rides.NewRepository(db),
		userLoader{db: db},
		ledgerSvc,
		audit,
		testCommission,
	)
	if err != nil {
		t.Fatalf("participation service: %v", err)
	}
	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedUser(t *testing.T, role enums.UserRole, credits int) models.User {
	t.Helper()
	user := models.User{
		Pseudo:       "user_" + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@test.local",
		PasswordHash: "x",
		Role:         role,
		Status:       enums.UserStatusActive,
		Credits:      credits,
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedRide(t *testing.T, driver models.User, price, seats int, status enums.RideStatus) models.Ride {
	t.Helper()
	vehicle := models.Vehicle{
		OwnerID: driver.ID,
		Plate:   "AB-" + uuid.NewString()[:8],
		Brand:   "Renault",
		Model:   "Zoe",
		Color:   "bleu",
		Energy:  "electrique",
		Seats:   seats + 1,
	}
	if err := f.db.Create(&vehicle).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	ride := models.Ride{
		DriverID:      driver.ID,
		VehicleID:     vehicle.ID,
		DepartureCity: "Lyon",
		ArrivalCity:   "Paris",
		DepartureAt:   time.Now().Add(24 * time.Hour),
		ArrivalAt:     time.Now().Add(28 * time.Hour),
		Price:         price,
		SeatsTotal:    seats,
		SeatsLeft:     seats,
		Status:        status,
		Ecological:    true,
	}
	if err := f.db.Create(&ride).Error; err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return ride
}

func (f *fixture) credits(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var user models.User
	if err := f.db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user.Credits
}

func (f *fixture) seatsLeft(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var ride models.Ride
	if err := f.db.First(&ride, "id = ?", id).Error; err != nil {
		t.Fatalf("reload ride: %v", err)
	}
	return ride.SeatsLeft
}

func TestJoinBooksSeatAndDebitsCredits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 8, 3, enums.RideStatusScheduled)

	participation, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if participation.CreditsSpent != 8 {
		t.Fatalf("expected credits_spent 8, got %d", participation.CreditsSpent)
	}
	if participation.ValidationStatus != enums.ValidationStatusPending {
		t.Fatalf("expected pending validation, got %s", participation.ValidationStatus)
	}
	if got := f.credits(t, passenger.ID); got != 12 {
		t.Fatalf("expected 12 credits left, got %d", got)
	}
	if got := f.seatsLeft(t, ride.ID); got != 2 {
		t.Fatalf("expected 2 seats left, got %d", got)
	}
}

func TestJoinLastSeatThenRejectsNext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	first := f.seedUser(t, enums.UserRolePassenger, 20)
	second := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 5, 1, enums.RideStatusScheduled)

	if _, err := f.svc.Join(ctx, first.ID, ride.ID); err != nil {
		t.Fatalf("first join: %v", err)
	}

	_, err := f.svc.Join(ctx, second.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNoSeatsAvailable {
		t.Fatalf("expected no seats error, got %v", err)
	}
	if got := f.credits(t, second.ID); got != 20 {
		t.Fatalf("losing passenger must keep credits, got %d", got)
	}
	if got := f.seatsLeft(t, ride.ID); got != 0 {
		t.Fatalf("expected 0 seats left, got %d", got)
	}
}

func TestJoinInsufficientFundsReleasesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	poor := f.seedUser(t, enums.UserRolePassenger, 3)
	ride := f.seedRide(t, driver, 10, 2, enums.RideStatusScheduled)

	_, err := f.svc.Join(ctx, poor.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
	if got := f.seatsLeft(t, ride.ID); got != 2 {
		t.Fatalf("seat decrement must roll back, got %d seats", got)
	}
	if got := f.credits(t, poor.ID); got != 3 {
		t.Fatalf("credits must be untouched, got %d", got)
	}
}

func TestJoinRejectsDriverAndDoubleBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 50)
	passenger := f.seedUser(t, enums.UserRolePassenger, 50)
	ride := f.seedRide(t, driver, 5, 3, enums.RideStatusScheduled)

	_, err := f.svc.Join(ctx, driver.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for driver self-booking, got %v", err)
	}

	if _, err := f.svc.Join(ctx, passenger.ID, ride.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = f.svc.Join(ctx, passenger.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for double booking, got %v", err)
	}
}

func TestCancelRefundsAndFreesSeat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 8, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.svc.Cancel(ctx, passenger.ID, booking.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.credits(t, passenger.ID); got != 20 {
		t.Fatalf("expected full refund, got %d", got)
	}
	if got := f.seatsLeft(t, ride.ID); got != 2 {
		t.Fatalf("expected seat released, got %d", got)
	}

	// A rejoin after cancelling must work.
	if _, err := f.svc.Join(ctx, passenger.ID, ride.ID); err != nil {
		t.Fatalf("rejoin after cancel: %v", err)
	}
}

func TestCancelTooLateOnceRideStarted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 8, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.db.Model(&models.Ride{}).
		Where("id = ?", ride.ID).
		Update("status", enums.RideStatusOngoing).Error; err != nil {
		t.Fatalf("force start: %v", err)
	}

	err = f.svc.Cancel(ctx, passenger.ID, booking.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTooLateToCancel {
		t.Fatalf("expected too late error, got %v", err)
	}
	if got := f.credits(t, passenger.ID); got != 12 {
		t.Fatalf("no refund may happen, got %d credits", got)
	}
}

func TestCancelByAnotherPassengerRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	stranger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 8, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	err = f.svc.Cancel(ctx, stranger.ID, booking.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}

	err = f.svc.Cancel(ctx, passenger.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidateConfirmedPaysDriverMinusCommission(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 10, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.db.Model(&models.Ride{}).
		Where("id = ?", ride.ID).
		Update("status", enums.RideStatusCompleted).Error; err != nil {
		t.Fatalf("force complete: %v", err)
	}

	participation, err := f.svc.Validate(ctx, passenger.ID, booking.ID, ValidateInput{
		Outcome: enums.ValidationStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if participation.ValidationStatus != enums.ValidationStatusConfirmed {
		t.Fatalf("unexpected status %s", participation.ValidationStatus)
	}
	if got := f.credits(t, driver.ID); got != 8 {
		t.Fatalf("expected payout 8 (10 - commission 2), got %d", got)
	}

	var movement models.CreditMovement
	if err := f.db.First(&movement, "user_id = ? AND reason = ?", driver.ID, enums.CreditReasonDriverPayout).Error; err != nil {
		t.Fatalf("payout movement missing: %v", err)
	}
	if movement.Amount != 8 {
		t.Fatalf("expected movement amount 8, got %d", movement.Amount)
	}
}

func TestValidateTwiceOnlyPaysOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 10, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.db.Model(&models.Ride{}).
		Where("id = ?", ride.ID).
		Update("status", enums.RideStatusCompleted).Error; err != nil {
		t.Fatalf("force complete: %v", err)
	}

	if _, err := f.svc.Validate(ctx, passenger.ID, booking.ID, ValidateInput{
		Outcome: enums.ValidationStatusConfirmed,
	}); err != nil {
		t.Fatalf("first validate: %v", err)
	}

	_, err = f.svc.Validate(ctx, passenger.ID, booking.ID, ValidateInput{
		Outcome: enums.ValidationStatusConfirmed,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second validation, got %v", err)
	}
	if got := f.credits(t, driver.ID); got != 8 {
		t.Fatalf("driver must be paid exactly once, got %d", got)
	}
}

func TestValidateDisputedFreezesPayout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 10, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.db.Model(&models.Ride{}).
		Where("id = ?", ride.ID).
		Update("status", enums.RideStatusCompleted).Error; err != nil {
		t.Fatalf("force complete: %v", err)
	}

	note := "le conducteur n'est jamais venu"
	participation, err := f.svc.Validate(ctx, passenger.ID, booking.ID, ValidateInput{
		Outcome: enums.ValidationStatusDisputed,
		Note:    &note,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if participation.ValidationStatus != enums.ValidationStatusDisputed {
		t.Fatalf("unexpected status %s", participation.ValidationStatus)
	}
	if got := f.credits(t, driver.ID); got != 0 {
		t.Fatalf("disputed ride must not pay the driver, got %d", got)
	}

	disputed, err := f.svc.ListDisputed(ctx)
	if err != nil {
		t.Fatalf("list disputed: %v", err)
	}
	if len(disputed) != 1 || disputed[0].ID != participation.ID {
		t.Fatalf("disputed queue should contain the participation")
	}
}

func TestValidateRequiresNoteWhenDisputing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, uuid.New(), uuid.New(), ValidateInput{
		Outcome: enums.ValidationStatusDisputed,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateBeforeFinishRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	passenger := f.seedUser(t, enums.UserRolePassenger, 20)
	ride := f.seedRide(t, driver, 10, 2, enums.RideStatusScheduled)

	booking, err := f.svc.Join(ctx, passenger.ID, ride.ID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err = f.svc.Validate(ctx, passenger.ID, booking.ID, ValidateInput{
		Outcome: enums.ValidationStatusConfirmed,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
