package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/rides"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

type createRideRequest struct {
	VehicleID     string    `json:"vehiculeId" validate:"required,uuid4"`
	DepartureCity string    `json:"villeDepart" validate:"required,min=1,max=100"`
	ArrivalCity   string    `json:"villeArrivee" validate:"required,min=1,max=100"`
	DepartureAt   time.Time `json:"dateDepart" validate:"required"`
	ArrivalAt     time.Time `json:"dateArrivee" validate:"required"`
	Price         int       `json:"prix" validate:"required,gt=0"`
	Seats         int       `json:"places" validate:"required,min=1,max=8"`
}

// CreateRide publishes a new ride offer for the authenticated driver.
func CreateRide(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vehicleID, err := pathUUID(body.VehicleID, "vehiculeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ride, err := svc.Create(r.Context(), userID, rides.CreateInput{
			VehicleID:     vehicleID,
			DepartureCity: validators.SanitizeString(body.DepartureCity, 100),
			ArrivalCity:   validators.SanitizeString(body.ArrivalCity, 100),
			DepartureAt:   body.DepartureAt,
			ArrivalAt:     body.ArrivalAt,
			Price:         body.Price,
			Seats:         body.Seats,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toRideDTO(ride))
	}
}

type searchRidesResponse struct {
	Rides         []RideDTO  `json:"covoiturages"`
	NextDeparture *time.Time `json:"prochaineDate,omitempty"`
}

// SearchRides is the public itinerary search. When the requested day has no
// match, the response suggests the closest later departure on the route.
func SearchRides(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		day, err := validators.ParseQueryDate(r, "dateDepart")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ecological, err := validators.ParseQueryBool(r, "ecologique")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxPrice, err := validators.ParseQueryInt(r, "prixMax", 0, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxMinutes, err := validators.ParseQueryInt(r, "dureeMax", 0, 1, 24*60)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := rides.SearchParams{
			DepartureCity:  strings.TrimSpace(r.URL.Query().Get("villeDepart")),
			ArrivalCity:    strings.TrimSpace(r.URL.Query().Get("villeArrivee")),
			DepartureDay:   day,
			EcologicalOnly: ecological,
		}
		if maxPrice > 0 {
			params.MaxPrice = &maxPrice
		}
		if maxMinutes > 0 {
			maxDuration := time.Duration(maxMinutes) * time.Minute
			params.MaxDuration = &maxDuration
		}

		result, err := svc.Search(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := searchRidesResponse{
			Rides:         toRideDTOs(result.Rides),
			NextDeparture: result.NextDeparture,
		}
		if len(result.Rides) == 0 {
			// No match on the requested day. The 404 still carries the
			// closest later departure so the client can offer it.
			responses.WriteSuccessStatus(w, http.StatusNotFound, payload)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

// RideDetail returns one ride by id.
func RideDetail(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		rideID, err := pathUUID(chi.URLParam(r, "rideId"), "rideId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ride, err := svc.Get(r.Context(), rideID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRideDTO(ride))
	}
}

// StartRide moves a scheduled ride to ongoing.
func StartRide(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideTransition(svc, logg, rides.Service.Start)
}

// FinishRide moves an ongoing ride to completed.
func FinishRide(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return rideTransition(svc, logg, rides.Service.Finish)
}

func rideTransition(
	svc rides.Service,
	logg *logger.Logger,
	op func(svc rides.Service, ctx context.Context, driverID, rideID uuid.UUID) (*models.Ride, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := pathUUID(chi.URLParam(r, "rideId"), "rideId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ride, err := op(svc, r.Context(), userID, rideID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRideDTO(ride))
	}
}

// CancelRide is the driver-side cancellation with the refund cascade.
func CancelRide(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := pathUUID(chi.URLParam(r, "rideId"), "rideId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, rideID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "annule"})
	}
}

// MyRides lists the authenticated driver's published rides.
func MyRides(svc rides.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ride service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByDriver(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRideDTOs(list))
	}
}
