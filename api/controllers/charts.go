package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chartduel/chartduel-backend/api/middleware"
	"github.com/chartduel/chartduel-backend/api/responses"
	"github.com/chartduel/chartduel-backend/api/validators"
	"github.com/chartduel/chartduel-backend/internal/charts"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// CreateChart opens a new fee-gated challenge owned by the caller.
func CreateChart(svc charts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID := middleware.UserUUIDFromContext(r.Context())
		if creatorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var input charts.CreateChartInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chart, err := svc.Create(r.Context(), creatorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, chart)
	}
}

// GetChart returns a chart with its participant snapshot.
func GetChart(svc charts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chartID, err := uuid.Parse(chi.URLParam(r, "chartId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chart id"))
			return
		}

		chart, err := svc.Get(r.Context(), chartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, chart)
	}
}

// JoinChart claims a slot for the caller. Filling the last slot starts the
// chart and returns the arena id created in the same transaction.
func JoinChart(svc charts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserUUIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		chartID, err := uuid.Parse(chi.URLParam(r, "chartId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chart id"))
			return
		}

		result, err := svc.Join(r.Context(), chartID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
