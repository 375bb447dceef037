package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecoride-app/ecoride-backend/api/controllers"
	"github.com/ecoride-app/ecoride-backend/api/middleware"
	"github.com/ecoride-app/ecoride-backend/internal/auth"
	"github.com/ecoride-app/ecoride-backend/internal/participations"
	"github.com/ecoride-app/ecoride-backend/internal/reviews"
	"github.com/ecoride-app/ecoride-backend/internal/rides"
	"github.com/ecoride-app/ecoride-backend/internal/users"
	"github.com/ecoride-app/ecoride-backend/internal/vehicles"
	"github.com/ecoride-app/ecoride-backend/pkg/auth/session"
	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
	"github.com/ecoride-app/ecoride-backend/pkg/redis"
)

// NewRouter assembles the full HTTP surface. Public routes cover account
// creation, login, and ride search. Everything else sits behind the access
// token middleware, with staff and admin subtrees gated by role.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	userService users.Service,
	vehicleService vehicles.Service,
	rideService rides.Service,
	participationService participations.Service,
	reviewService reviews.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api", func(r chi.Router) {
		// Public surface.
		r.Post("/utilisateurs", controllers.Register(userService, logg))
		r.Post("/login", controllers.Login(authService, logg))
		r.Post("/refresh", controllers.Refresh(authService, logg))

		r.Get("/covoiturages", controllers.SearchRides(rideService, logg))
		r.Get("/covoiturages/{rideId}", controllers.RideDetail(rideService, logg))
		r.Get("/chauffeurs/{driverId}/avis", controllers.DriverReviews(reviewService, logg))
		r.Get("/chauffeurs/{driverId}/note", controllers.DriverRating(reviewService, logg))

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))

			r.Post("/logout", controllers.Logout(authService, logg))

			r.Route("/moi", func(r chi.Router) {
				r.Get("/", controllers.Me(userService, logg))
				r.Patch("/", controllers.UpdateProfile(userService, logg))
				r.Put("/role", controllers.UpdateRole(userService, logg))
				r.Get("/historique", controllers.History(userService, logg))
				r.Get("/credits", controllers.CreditHistory(userService, logg))
				r.Get("/covoiturages", controllers.MyRides(rideService, logg))
				r.Get("/participations", controllers.MyParticipations(participationService, logg))
			})

			r.Route("/vehicules", func(r chi.Router) {
				r.Get("/", controllers.MyVehicles(vehicleService, logg))
				r.Post("/", controllers.RegisterVehicle(vehicleService, logg))
			})

			r.Post("/covoiturages", controllers.CreateRide(rideService, logg))
			r.Route("/covoiturages/{rideId}", func(r chi.Router) {
				r.Post("/start", controllers.StartRide(rideService, logg))
				r.Post("/finish", controllers.FinishRide(rideService, logg))
				r.Post("/cancel", controllers.CancelRide(rideService, logg))
			})

			r.Post("/participations", controllers.JoinRide(participationService, logg))
			r.Route("/participations/{participationId}", func(r chi.Router) {
				r.Delete("/", controllers.CancelParticipation(participationService, logg))
				r.Patch("/validation", controllers.ValidateParticipation(participationService, logg))
				r.Post("/review", controllers.SubmitReview(reviewService, logg))
			})

			// Employee moderation desk.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Get("/avis", controllers.PendingReviews(reviewService, logg))
				r.Patch("/avis/{reviewId}/status", controllers.ModerateReview(reviewService, logg))
				r.Get("/participations/litiges", controllers.DisputedParticipations(participationService, logg))
			})

			// Administrator console.
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
				r.Post("/utilisateurs/{userId}/suspendre", controllers.SuspendUser(userService, logg))
				r.Post("/utilisateurs/{userId}/reactiver", controllers.ReactivateUser(userService, logg))
				r.Post("/employes", controllers.CreateEmployee(userService, logg))
				r.Get("/statistiques", controllers.PlatformStatistics(userService, logg))
			})
		})
	})

	return r
}
