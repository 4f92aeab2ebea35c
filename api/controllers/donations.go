package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/api/middleware"
	"github.com/chartduel/chartduel-backend/api/responses"
	"github.com/chartduel/chartduel-backend/api/validators"
	"github.com/chartduel/chartduel-backend/internal/donations"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// Donate transfers credits from the caller to another user.
func Donate(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		donorID := middleware.UserUUIDFromContext(r.Context())
		if donorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var input donations.DonateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		donation, err := svc.Donate(r.Context(), donorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donation)
	}
}

// Shout posts a public endorsement from the caller to another user.
func Shout(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID := middleware.UserUUIDFromContext(r.Context())
		if senderID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var input donations.ShoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shoutout, err := svc.Shout(r.Context(), senderID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shoutout)
	}
}
