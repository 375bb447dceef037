package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/participations"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

type joinRideRequest struct {
	RideID string `json:"covoiturageId" validate:"required,uuid4"`
}

// JoinRide books a seat on a ride for the authenticated passenger.
func JoinRide(svc participations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participation service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body joinRideRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rideID, err := uuid.Parse(body.RideID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "covoiturageId must be a valid UUID"))
			return
		}

		participation, err := svc.Join(r.Context(), userID, rideID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toParticipationDTO(participation))
	}
}

// CancelParticipation releases the passenger's seat and refunds the credits.
func CancelParticipation(svc participations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participation service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		participationID, err := pathUUID(chi.URLParam(r, "participationId"), "participationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, participationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "annule"})
	}
}

type validateParticipationRequest struct {
	Outcome string  `json:"status" validate:"required,oneof=confirmed disputed"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// ValidateParticipation records the passenger's post-ride verdict. A
// confirmation releases the driver payout.
func ValidateParticipation(svc participations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participation service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		participationID, err := pathUUID(chi.URLParam(r, "participationId"), "participationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body validateParticipationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, err := enums.ParseValidationStatus(body.Outcome)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid validation outcome"))
			return
		}

		participation, err := svc.Validate(r.Context(), userID, participationID, participations.ValidateInput{
			Outcome: outcome,
			Note:    body.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParticipationDTO(participation))
	}
}

// MyParticipations lists the authenticated passenger's bookings.
func MyParticipations(svc participations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participation service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByPassenger(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParticipationDTOs(list))
	}
}

// DisputedParticipations lists rides flagged by passengers, for staff review.
func DisputedParticipations(svc participations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "participation service unavailable"))
			return
		}

		list, err := svc.ListDisputed(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParticipationDTOs(list))
	}
}
