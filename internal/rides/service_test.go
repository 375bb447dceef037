package rides

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/internal/ledger"
	"github.com/ecoride-app/ecoride-backend/internal/participations"
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

type vehicleDBLoader struct {
	db *gorm.DB
}

func (l vehicleDBLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := l.db.WithContext(ctx).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:rides_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		userLoader{db: db},
		vehicleDBLoader{db: db},
		participations.NewRepository(db),
		ledgerSvc,
		audit,
	)
	if err != nil {
		t.Fatalf("ride service: %v", err)
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

func (f *fixture) seedVehicle(t *testing.T, owner models.User, energy string, seats int) models.Vehicle {
	t.Helper()
	vehicle := models.Vehicle{
		OwnerID: owner.ID,
		Plate:   "AB-" + uuid.NewString()[:8],
		Brand:   "Peugeot",
		Model:   "208",
		Color:   "gris",
		Energy:  energy,
		Seats:   seats,
	}
	if err := f.db.Create(&vehicle).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return vehicle
}

func validInput(vehicleID uuid.UUID) CreateInput {
	departure := time.Now().Add(48 * time.Hour)
	return CreateInput{
		VehicleID:     vehicleID,
		DepartureCity: "Lyon",
		ArrivalCity:   "Paris",
		DepartureAt:   departure,
		ArrivalAt:     departure.Add(4 * time.Hour),
		Price:         10,
		Seats:         3,
	}
}

func TestCreateRide(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "electrique", 4)

	ride, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ride.Status != enums.RideStatusScheduled {
		t.Fatalf("expected scheduled status, got %s", ride.Status)
	}
	if ride.SeatsLeft != 3 || ride.SeatsTotal != 3 {
		t.Fatalf("unexpected seats %d/%d", ride.SeatsLeft, ride.SeatsTotal)
	}
	if !ride.Ecological {
		t.Fatal("electric vehicle must mark the ride ecological")
	}

	var count int64
	if err := f.db.Model(&models.AuditEvent{}).
		Where("action = ?", enums.AuditRideCreated).
		Count(&count).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one audit event, got %d", count)
	}
}

func TestCreateRideRejectsPassengerRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	passenger := f.seedUser(t, enums.UserRolePassenger, 0)
	vehicle := f.seedVehicle(t, passenger, "essence", 4)

	_, err := f.svc.Create(ctx, passenger.ID, validInput(vehicle.ID))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestCreateRideRejectsForeignVehicle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	other := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, other, "essence", 4)

	_, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestCreateRideValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "essence", 2)

	for name, mutate := range map[string]func(*CreateInput){
		"free ride":        func(in *CreateInput) { in.Price = 0 },
		"no seats":         func(in *CreateInput) { in.Seats = 0 },
		"too many seats":   func(in *CreateInput) { in.Seats = 5 },
		"past departure":   func(in *CreateInput) { in.DepartureAt = time.Now().Add(-time.Hour) },
		"arrival reversed": func(in *CreateInput) { in.ArrivalAt = in.DepartureAt.Add(-time.Hour) },
		"missing city":     func(in *CreateInput) { in.ArrivalCity = "" },
	} {
		input := validInput(vehicle.ID)
		mutate(&input)
		if _, err := f.svc.Create(ctx, driver.ID, input); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSearchSuggestsNextDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "electrique", 4)

	input := validInput(vehicle.ID)
	input.DepartureAt = time.Now().Add(5 * 24 * time.Hour)
	input.ArrivalAt = input.DepartureAt.Add(4 * time.Hour)
	if _, err := f.svc.Create(ctx, driver.ID, input); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Search two days ahead: nothing that day, but a later ride exists.
	result, err := f.svc.Search(ctx, SearchParams{
		DepartureCity: "Lyon",
		ArrivalCity:   "Paris",
		DepartureDay:  time.Now().Add(2 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Rides) != 0 {
		t.Fatalf("expected empty result, got %d rides", len(result.Rides))
	}
	if result.NextDeparture == nil {
		t.Fatal("expected a next-date suggestion")
	}

	// Searching the right day finds it and drops the suggestion.
	result, err = f.svc.Search(ctx, SearchParams{
		DepartureCity: "Lyon",
		ArrivalCity:   "Paris",
		DepartureDay:  input.DepartureAt,
	})
	if err != nil {
		t.Fatalf("search exact day: %v", err)
	}
	if len(result.Rides) != 1 {
		t.Fatalf("expected one ride, got %d", len(result.Rides))
	}
	if result.NextDeparture != nil {
		t.Fatal("no suggestion expected when rides match")
	}
}

func TestSearchFilters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	electric := f.seedVehicle(t, driver, "electrique", 4)
	diesel := f.seedVehicle(t, driver, "diesel", 4)

	day := time.Now().Add(72 * time.Hour).UTC().Truncate(24 * time.Hour).Add(10 * time.Hour)

	cheap := validInput(electric.ID)
	cheap.DepartureAt = day
	cheap.ArrivalAt = day.Add(3 * time.Hour)
	cheap.Price = 5
	if _, err := f.svc.Create(ctx, driver.ID, cheap); err != nil {
		t.Fatalf("create cheap: %v", err)
	}

	pricey := validInput(diesel.ID)
	pricey.DepartureAt = day.Add(time.Hour)
	pricey.ArrivalAt = day.Add(9 * time.Hour)
	pricey.Price = 30
	if _, err := f.svc.Create(ctx, driver.ID, pricey); err != nil {
		t.Fatalf("create pricey: %v", err)
	}

	maxPrice := 10
	maxDuration := 4 * time.Hour
	result, err := f.svc.Search(ctx, SearchParams{
		DepartureCity:  "Lyon",
		ArrivalCity:    "Paris",
		DepartureDay:   day,
		EcologicalOnly: true,
		MaxPrice:       &maxPrice,
		MaxDuration:    &maxDuration,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Rides) != 1 {
		t.Fatalf("expected only the electric cheap ride, got %d", len(result.Rides))
	}
	if result.Rides[0].Price != 5 {
		t.Fatalf("unexpected ride %+v", result.Rides[0])
	}
}

func TestStartAndFinishLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "essence", 4)

	ride, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	started, err := f.svc.Start(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != enums.RideStatusOngoing || started.StartedAt == nil {
		t.Fatalf("unexpected state after start: %+v", started)
	}

	// Starting twice conflicts.
	if _, err := f.svc.Start(ctx, driver.ID, ride.ID); err == nil {
		t.Fatal("second start must fail")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	finished, err := f.svc.Finish(ctx, driver.ID, ride.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.Status != enums.RideStatusCompleted || finished.FinishedAt == nil {
		t.Fatalf("unexpected state after finish: %+v", finished)
	}
}

func TestStartRejectsForeignDriver(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	stranger := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "essence", 4)

	ride, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.Start(ctx, stranger.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestCancelRefundsAllPassengers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "essence", 4)

	ride, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	alice := f.seedUser(t, enums.UserRolePassenger, 20)
	bob := f.seedUser(t, enums.UserRolePassenger, 15)
	for _, passenger := range []models.User{alice, bob} {
		participation := models.Participation{
			RideID:           ride.ID,
			PassengerID:      passenger.ID,
			CreditsSpent:     ride.Price,
			ValidationStatus: enums.ValidationStatusPending,
		}
		if err := f.db.Create(&participation).Error; err != nil {
			t.Fatalf("seed participation: %v", err)
		}
		if err := f.db.Model(&models.User{}).
			Where("id = ?", passenger.ID).
			Update("credits", gorm.Expr("credits - ?", ride.Price)).Error; err != nil {
			t.Fatalf("debit passenger: %v", err)
		}
	}

	if err := f.svc.Cancel(ctx, driver.ID, ride.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, tc := range []struct {
		id   uuid.UUID
		want int
	}{
		{alice.ID, 20},
		{bob.ID, 15},
	} {
		var user models.User
		if err := f.db.First(&user, "id = ?", tc.id).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if user.Credits != tc.want {
			t.Fatalf("expected refund to %d credits, got %d", tc.want, user.Credits)
		}
	}

	var reloaded models.Ride
	if err := f.db.First(&reloaded, "id = ?", ride.ID).Error; err != nil {
		t.Fatalf("reload ride: %v", err)
	}
	if reloaded.Status != enums.RideStatusCancelled || reloaded.CancelledAt == nil {
		t.Fatalf("unexpected ride state %+v", reloaded)
	}

	var active int64
	if err := f.db.Model(&models.Participation{}).
		Where("ride_id = ? AND cancelled_at IS NULL", ride.ID).
		Count(&active).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 0 {
		t.Fatalf("expected every participation cancelled, %d still active", active)
	}

	// Cancelling an already cancelled ride conflicts.
	if err := f.svc.Cancel(ctx, driver.ID, ride.ID); err == nil {
		t.Fatal("second cancel must fail")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelTooLateAfterDeparture(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, enums.UserRoleDriver, 0)
	vehicle := f.seedVehicle(t, driver, "essence", 4)

	ride, err := f.svc.Create(ctx, driver.ID, validInput(vehicle.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	passenger := f.seedUser(t, enums.UserRolePassenger, 10)
	participation := models.Participation{
		RideID:           ride.ID,
		PassengerID:      passenger.ID,
		CreditsSpent:     ride.Price,
		ValidationStatus: enums.ValidationStatusPending,
	}
	if err := f.db.Create(&participation).Error; err != nil {
		t.Fatalf("seed participation: %v", err)
	}

	// A scheduled ride whose departure has already passed.
	if err := f.db.Model(&models.Ride{}).
		Where("id = ?", ride.ID).
		Update("departure_at", time.Now().Add(-2*time.Hour)).Error; err != nil {
		t.Fatalf("backdate departure: %v", err)
	}

	err = f.svc.Cancel(ctx, driver.ID, ride.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeTooLateToCancel {
		t.Fatalf("expected too late error, got %v", err)
	}

	var reloaded models.Ride
	if err := f.db.First(&reloaded, "id = ?", ride.ID).Error; err != nil {
		t.Fatalf("reload ride: %v", err)
	}
	if reloaded.Status != enums.RideStatusScheduled {
		t.Fatalf("ride must stay scheduled, got %s", reloaded.Status)
	}
	var user models.User
	if err := f.db.First(&user, "id = ?", passenger.ID).Error; err != nil {
		t.Fatalf("reload passenger: %v", err)
	}
	if user.Credits != 10 {
		t.Fatalf("no refund may happen, got %d credits", user.Credits)
	}
}
