package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/ecoride-app/ecoride-backend/api/routes"
	"github.com/ecoride-app/ecoride-backend/internal/auth"
	"github.com/ecoride-app/ecoride-backend/internal/ledger"
	"github.com/ecoride-app/ecoride-backend/internal/participations"
	"github.com/ecoride-app/ecoride-backend/internal/reviews"
	"github.com/ecoride-app/ecoride-backend/internal/rides"
	"github.com/ecoride-app/ecoride-backend/internal/users"
	"github.com/ecoride-app/ecoride-backend/internal/vehicles"
	"github.com/ecoride-app/ecoride-backend/pkg/auditlog"
	"github.com/ecoride-app/ecoride-backend/pkg/auth/session"
	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
	"github.com/ecoride-app/ecoride-backend/pkg/migrate"
	"github.com/ecoride-app/ecoride-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	vehicleRepo := vehicles.NewRepository(dbClient.DB())
	rideRepo := rides.NewRepository(dbClient.DB())
	participationRepo := participations.NewRepository(dbClient.DB())
	reviewRepo := reviews.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	auditService := auditlog.NewService(auditlog.NewRepository(dbClient.DB()), dbClient, logg)

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(
		dbClient,
		userRepo,
		rideRepo,
		participationRepo,
		ledgerService,
		auditService,
		cfg.Password,
		cfg.Marketplace,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(userRepo, sessionManager, redisClient, auditService, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	vehicleService, err := vehicles.NewService(dbClient, vehicleRepo, userRepo, auditService)
	if err != nil {
		logg.Error(context.Background(), "failed to create vehicle service", err)
		os.Exit(1)
	}

	rideService, err := rides.NewService(
		dbClient,
		rideRepo,
		userRepo,
		vehicleRepo,
		participationRepo,
		ledgerService,
		auditService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ride service", err)
		os.Exit(1)
	}

	participationService, err := participations.NewService(
		dbClient,
		participationRepo,
		rideRepo,
		userRepo,
		ledgerService,
		auditService,
		cfg.Marketplace.CommissionCredits,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create participation service", err)
		os.Exit(1)
	}

	reviewService, err := reviews.NewService(
		dbClient,
		reviewRepo,
		participationRepo,
		rideRepo,
		userRepo,
		auditService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			userService,
			vehicleService,
			rideService,
			participationService,
			reviewService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
