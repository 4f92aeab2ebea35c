package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chartduel/chartduel-backend/api/controllers"
	"github.com/chartduel/chartduel-backend/api/middleware"
	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/charts"
	"github.com/chartduel/chartduel-backend/internal/donations"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/notifications"
	"github.com/chartduel/chartduel-backend/pkg/config"
	"github.com/chartduel/chartduel-backend/pkg/db"
	"github.com/chartduel/chartduel-backend/pkg/logger"
	"github.com/chartduel/chartduel-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Charts        charts.Service
	Arenas        arenas.Service
	Settler       arenas.Settler
	Donations     donations.Service
	Notifications notifications.Service
	Ledger        ledger.Service
	Realtime      http.Handler
	Metrics       http.Handler
}

// NewRouter builds the full HTTP surface. Health, metrics and the websocket
// upgrade sit outside the JWT middleware; everything under /api/v1 requires a
// bearer token.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisCheck redis.Pinger
	if deps.Redis != nil {
		redisCheck = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisCheck))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Realtime != nil {
		r.Method(http.MethodGet, "/ws", deps.Realtime)
	}

	donationPolicy := middleware.NewRateLimitPolicy(
		"donations",
		cfg.Donation.RateWindow,
		cfg.Donation.RateLimit,
	)
	shoutoutPolicy := middleware.NewRateLimitPolicy(
		"shoutouts",
		cfg.Donation.RateWindow,
		cfg.Donation.RateLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/charts", func(r chi.Router) {
			r.Post("/", controllers.CreateChart(deps.Charts, logg))
			r.Get("/{chartId}", controllers.GetChart(deps.Charts, logg))
			r.Post("/{chartId}/join", controllers.JoinChart(deps.Charts, logg))
		})

		r.Route("/arenas", func(r chi.Router) {
			r.Get("/{arenaId}", controllers.GetArena(deps.Arenas, logg))
			r.Post("/{arenaId}/complete", controllers.CompleteArena(deps.Settler, deps.Arenas, logg))
		})

		r.With(middleware.RateLimit(donationPolicy, deps.Redis, logg)).
			Post("/donations", controllers.Donate(deps.Donations, logg))
		r.With(middleware.RateLimit(shoutoutPolicy, deps.Redis, logg)).
			Post("/shoutouts", controllers.Shout(deps.Donations, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Get("/users/{userId}/transactions", controllers.ListTransactions(deps.Ledger, logg))
	})

	return r
}
