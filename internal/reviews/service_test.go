package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/participations"
	"github.com/ecoride-app/ecoride-backend/internal/rides"
	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
)

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
	dsn := "file:reviews_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Ride{},
		&models.Participation{},
		&models.Review{},
		&models.AuditEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		participations.NewRepository(db),
		rides.NewRepository(db),
		userLoader{db: db},
		auditlog.NewService(auditlog.NewRepository(db), nil, nil),
	)
	if err != nil {
		t.Fatalf("review service: %v", err)
	}
	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedUser(t *testing.T, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{
		Pseudo:       "user_" + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@test.local",
		PasswordHash: "x",
		Role:         role,
		Status:       enums.UserStatusActive,
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// seedTrip creates a ride in the given status with one active participation.
func (f *fixture) seedTrip(t *testing.T, driver, passenger models.User, status enums.RideStatus) (models.Ride, models.Participation) {
	t.Helper()
	vehicle := models.Vehicle{
		OwnerID: driver.ID,
		Plate:   "CD-" + uuid.NewString()[:8],
		Brand:   "Renault",
		Model:   "Clio",
		Color:   "bleu",
		Energy:  "essence",
		Seats:   4,
	}
	if err := f.db.Create(&vehicle).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	departure := time.Now().Add(-6 * time.Hour)
	ride := models.Ride{
		DriverID:      driver.ID,
		VehicleID:     vehicle.ID,
		DepartureCity: "Nantes",
		ArrivalCity:   "Rennes",
		DepartureAt:   departure,
		ArrivalAt:     departure.Add(2 * time.Hour),
		Price:         8,
		SeatsTotal:    3,
		SeatsLeft:     2,
		Status:        status,
	}
	if err := f.db.Create(&ride).Error; err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	participation := models.Participation{
		RideID:           ride.ID,
		PassengerID:      passenger.ID,
		CreditsSpent:     ride.Price,
		ValidationStatus: enums.ValidationStatusConfirmed,
	}
	if err := f.db.Create(&participation).Error; err != nil {
		t.Fatalf("seed participation: %v", err)
	}
	return ride, participation
}

func TestSubmitReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver)
	passenger := f.seedUser(t, enums.UserRolePassenger)
	_, participation := f.seedTrip(t, driver, passenger, enums.RideStatusCompleted)

	comment := "Conduite agreable, tres ponctuel."
	review, err := f.svc.Submit(ctx, passenger.ID, SubmitInput{
		ParticipationID: participation.ID,
		Rating:          5,
		Comment:         &comment,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if review.Status != enums.ReviewStatusPending {
		t.Fatalf("expected pending review, got %s", review.Status)
	}
	if review.DriverID != driver.ID {
		t.Fatal("review must target the ride's driver")
	}

	// A second review on the same booking conflicts.
	_, err = f.svc.Submit(ctx, passenger.ID, SubmitInput{ParticipationID: participation.ID, Rating: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSubmitReviewGuards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver)
	passenger := f.seedUser(t, enums.UserRolePassenger)
	stranger := f.seedUser(t, enums.UserRolePassenger)
	_, participation := f.seedTrip(t, driver, passenger, enums.RideStatusCompleted)

	// Someone else's booking.
	_, err := f.svc.Submit(ctx, stranger.ID, SubmitInput{ParticipationID: participation.ID, Rating: 4})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// Out-of-range rating.
	_, err = f.svc.Submit(ctx, passenger.ID, SubmitInput{ParticipationID: participation.ID, Rating: 6})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Ride still ongoing.
	otherPassenger := f.seedUser(t, enums.UserRolePassenger)
	_, ongoing := f.seedTrip(t, driver, otherPassenger, enums.RideStatusOngoing)
	_, err = f.svc.Submit(ctx, otherPassenger.ID, SubmitInput{ParticipationID: ongoing.ID, Rating: 3})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestModerateReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver)
	passenger := f.seedUser(t, enums.UserRolePassenger)
	employee := f.seedUser(t, enums.UserRoleEmployee)
	_, participation := f.seedTrip(t, driver, passenger, enums.RideStatusCompleted)

	review, err := f.svc.Submit(ctx, passenger.ID, SubmitInput{ParticipationID: participation.ID, Rating: 4})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	pending, err := f.svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending review, got %d", len(pending))
	}

	approved, err := f.svc.Moderate(ctx, employee.ID, ModerateInput{ReviewID: review.ID, Approve: true})
	if err != nil {
		t.Fatalf("moderate: %v", err)
	}
	if approved.Status != enums.ReviewStatusApproved || approved.ModeratedAt == nil {
		t.Fatalf("unexpected state %+v", approved)
	}

	// Second moderation conflicts.
	_, err = f.svc.Moderate(ctx, employee.ID, ModerateInput{ReviewID: review.ID, Approve: false})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	public, err := f.svc.ListApprovedByDriver(ctx, driver.ID)
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if len(public) != 1 {
		t.Fatalf("expected one public review, got %d", len(public))
	}
}

func TestModerateRequiresStaff(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver)
	passenger := f.seedUser(t, enums.UserRolePassenger)
	_, participation := f.seedTrip(t, driver, passenger, enums.RideStatusCompleted)

	review, err := f.svc.Submit(ctx, passenger.ID, SubmitInput{ParticipationID: participation.ID, Rating: 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.svc.Moderate(ctx, passenger.ID, ModerateInput{ReviewID: review.ID, Approve: true})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDriverRatingAveragesApprovedOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver)
	employee := f.seedUser(t, enums.UserRoleEmployee)

	ratings := []struct {
		value   int
		approve bool
	}{
		{5, true},
		{3, true},
		{1, false},
	}
	for _, r := range ratings {
		passenger := f.seedUser(t, enums.UserRolePassenger)
		_, participation := f.seedTrip(t, driver, passenger, enums.RideStatusCompleted)
		review, err := f.svc.Submit(ctx, passenger.ID, SubmitInput{ParticipationID: participation.ID, Rating: r.value})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := f.svc.Moderate(ctx, employee.ID, ModerateInput{ReviewID: review.ID, Approve: r.approve}); err != nil {
			t.Fatalf("moderate: %v", err)
		}
	}

	summary, err := f.svc.DriverRating(ctx, driver.ID)
	if err != nil {
		t.Fatalf("rating: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected two approved reviews, got %d", summary.Count)
	}
	if summary.Average != 4 {
		t.Fatalf("expected average 4, got %v", summary.Average)
	}
}
