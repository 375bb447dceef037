package controllers

import (
	"net/http"
	"time"

	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/vehicles"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

type registerVehicleRequest struct {
	Plate           string     `json:"immatriculation" validate:"required,min=4,max=20"`
	Brand           string     `json:"marque" validate:"required,min=1,max=50"`
	Model           string     `json:"modele" validate:"required,min=1,max=50"`
	Color           string     `json:"couleur" validate:"required,min=1,max=30"`
	Energy          string     `json:"energie" validate:"required,oneof=electrique hybride essence diesel"`
	Seats           int        `json:"places" validate:"required,min=1,max=8"`
	FirstRegistered *time.Time `json:"premiereImmatriculation,omitempty"`
}

// RegisterVehicle attaches a vehicle to the authenticated driver.
func RegisterVehicle(svc vehicles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vehicle service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body registerVehicleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vehicle, err := svc.Register(r.Context(), userID, vehicles.RegisterInput{
			Plate:           body.Plate,
			Brand:           body.Brand,
			Model:           body.Model,
			Color:           body.Color,
			Energy:          body.Energy,
			Seats:           body.Seats,
			FirstRegistered: body.FirstRegistered,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toVehicleDTO(vehicle))
	}
}

// MyVehicles lists the authenticated driver's vehicles.
func MyVehicles(svc vehicles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vehicle service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMine(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toVehicleDTOs(list))
	}
}
