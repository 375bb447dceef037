package controllers

import (
	"net/http"

	"github.com/ecoride-app/ecoride-backend/api/middleware"
	"github.com/ecoride-app/ecoride-backend/api/responses"
	"github.com/ecoride-app/ecoride-backend/api/validators"
	"github.com/ecoride-app/ecoride-backend/internal/auth"
	pkgerrors "github.com/ecoride-app/ecoride-backend/pkg/errors"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"motDePasse" validate:"required"`
}

type tokenPairDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresInSec int64  `json:"expireDans"`
}

type loginResponse struct {
	User   UserDTO      `json:"utilisateur"`
	Tokens tokenPairDTO `json:"jetons"`
}

// Login authenticates a member and hands back a token pair.
func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), auth.LoginInput{
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			User: toUserDTO(result.User),
			Tokens: tokenPairDTO{
				AccessToken:  result.Tokens.AccessToken,
				RefreshToken: result.Tokens.RefreshToken,
				ExpiresInSec: int64(result.Tokens.ExpiresIn.Seconds()),
			},
		})
	}
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Refresh exchanges a spent token pair for a fresh one.
func Refresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := svc.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokenPairDTO{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresInSec: int64(pair.ExpiresIn.Seconds()),
		})
	}
}

// Logout revokes the session carried by the authenticated request.
func Logout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session context missing"))
			return
		}

		if err := svc.Logout(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deconnecte"})
	}
}
