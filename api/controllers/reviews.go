package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/reviews"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

type submitReviewRequest struct {
	Rating  int     `json:"note" validate:"required,min=1,max=5"`
	Comment *string `json:"commentaire" validate:"omitempty,max=1000"`
}

// SubmitReview files a passenger review on a completed trip. It lands in the
// moderation queue rather than going public immediately.
func SubmitReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
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

		var body submitReviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Submit(r.Context(), userID, reviews.SubmitInput{
			ParticipationID: participationID,
			Rating:          body.Rating,
			Comment:         body.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toReviewDTO(review))
	}
}

// DriverReviews is the public list of approved reviews for a driver.
func DriverReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		driverID, err := pathUUID(chi.URLParam(r, "driverId"), "driverId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListApprovedByDriver(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReviewDTOs(list))
	}
}

// DriverRating returns the average approved rating for a driver.
func DriverRating(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		driverID, err := pathUUID(chi.URLParam(r, "driverId"), "driverId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.DriverRating(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toRatingDTO(summary))
	}
}

// PendingReviews lists the staff moderation queue.
func PendingReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		list, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReviewDTOs(list))
	}
}

type moderateReviewRequest struct {
	NewStatus string `json:"newStatus" validate:"required,oneof=approved rejected"`
}

// ModerateReview approves or rejects a pending review.
func ModerateReview(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reviewID, err := pathUUID(chi.URLParam(r, "reviewId"), "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body moderateReviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		review, err := svc.Moderate(r.Context(), userID, reviews.ModerateInput{
			ReviewID: reviewID,
			Approve:  body.NewStatus == "approved",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReviewDTO(review))
	}
}
