package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/users"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

// SuspendUser blocks an account until an administrator reactivates it.
func SuspendUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAccountAction(svc, logg, users.AdminService.Suspend, "suspendu")
}

// ReactivateUser lifts a suspension.
func ReactivateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return adminAccountAction(svc, logg, users.AdminService.Reactivate, "actif")
}

func adminAccountAction(
	svc users.Service,
	logg *logger.Logger,
	op func(svc users.AdminService, ctx context.Context, adminID, userID uuid.UUID) error,
	status string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		adminID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := pathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := op(svc, r.Context(), adminID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"statut": status})
	}
}

type createEmployeeRequest struct {
	Pseudo string `json:"pseudo" validate:"required,min=3,max=50"`
	Email  string `json:"email" validate:"required,email,max=255"`
}

type createdEmployeeResponse struct {
	User         UserDTO `json:"utilisateur"`
	TempPassword string  `json:"motDePasseTemporaire"`
}

// CreateEmployee opens a staff account. The temporary password appears in
// this response and nowhere else.
func CreateEmployee(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		adminID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createEmployeeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateEmployee(r.Context(), adminID, users.CreateEmployeeInput{
			Pseudo: validators.SanitizeString(body.Pseudo, 50),
			Email:  body.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createdEmployeeResponse{
			User:         toUserDTO(created.User),
			TempPassword: created.TempPassword,
		})
	}
}

type platformStatsResponse struct {
	RidesPerDay   []DailyCountDTO   `json:"covoituragesParJour"`
	CreditsPerDay []DailyCreditsDTO `json:"creditsParJour"`
	CreditsTotal  int64             `json:"creditsTotal"`
}

// PlatformStatistics serves the admin dashboard series over a date window.
func PlatformStatistics(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		adminID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryDate(r, "du")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "au")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Stats(r.Context(), adminID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, platformStatsResponse{
			RidesPerDay:   toDailyCountDTOs(stats.RidesPerDay),
			CreditsPerDay: toDailyCreditsDTOs(stats.CreditsPerDay),
			CreditsTotal:  stats.CreditsTotal,
		})
	}
}
