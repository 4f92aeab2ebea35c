package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/api/middleware"
	"github.com/chartduel/chartduel-backend/api/responses"
	"github.com/chartduel/chartduel-backend/api/validators"
	"github.com/chartduel/chartduel-backend/internal/arenas"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// GetArena returns the full state snapshot for a live or finished arena.
func GetArena(svc arenas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		arenaID, err := uuid.Parse(chi.URLParam(r, "arenaId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid arena id"))
			return
		}

		state, err := svc.Get(r.Context(), arenaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

type completeArenaRequest struct {
	WinnerID uuid.UUID `json:"winner_id" validate:"required"`
}

// CompleteArena drives settlement over HTTP. The caller must be a listed
// player of the arena; the engine's finished guard makes repeats harmless.
func CompleteArena(settler arenas.Settler, arenaSvc arenas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := middleware.UserUUIDFromContext(r.Context())
		if callerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		arenaID, err := uuid.Parse(chi.URLParam(r, "arenaId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid arena id"))
			return
		}

		var req completeArenaRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := arenaSvc.Get(r.Context(), arenaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller := false
		for _, player := range state.Players {
			if player.UserID == callerID {
				caller = true
				break
			}
		}
		if !caller {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only arena players can complete it"))
			return
		}

		if err := settler.Complete(r.Context(), arenaID, req.WinnerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		final, err := arenaSvc.Get(r.Context(), arenaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, final)
	}
}
