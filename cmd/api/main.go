package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chartduel/chartduel-backend/api/routes"
	"github.com/chartduel/chartduel-backend/api/ws"
	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/charts"
	"github.com/chartduel/chartduel-backend/internal/donations"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/notifications"
	"github.com/chartduel/chartduel-backend/internal/realtime"
	"github.com/chartduel/chartduel-backend/internal/settlement"
	"github.com/chartduel/chartduel-backend/internal/users"
	"github.com/chartduel/chartduel-backend/pkg/config"
	"github.com/chartduel/chartduel-backend/pkg/db"
	"github.com/chartduel/chartduel-backend/pkg/logger"
	"github.com/chartduel/chartduel-backend/pkg/metrics"
	"github.com/chartduel/chartduel-backend/pkg/migrate"
	"github.com/chartduel/chartduel-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	realtimeMetrics := metrics.NewRealtimeMetrics(promRegistry)
	registry := realtime.NewRegistry(realtimeMetrics)

	gormDB := dbClient.DB()

	usersRepo := users.NewRepository(gormDB)
	userSvc, err := users.NewService(usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(gormDB)
	notificationSvc, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	dispatcher, err := notifications.NewDispatcher(
		notificationsRepo,
		realtime.NewNotificationDelivery(registry, logg),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	arenasRepo := arenas.NewRepository(gormDB)
	arenaSvc, err := arenas.NewService(arenasRepo, usersRepo, registry, logg, arenas.Config{
		MaxChatLength: cfg.Realtime.MaxChatLength,
		ChatHistory:   cfg.Arena.ChatHistory,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create arenas service", err)
		os.Exit(1)
	}

	chartsRepo := charts.NewRepository(gormDB)
	chartSvc, err := charts.NewService(dbClient, chartsRepo, usersRepo, ledgerSvc, arenaSvc, logg, charts.Config{
		MinEntryFee:        cfg.Chart.MinEntryFee,
		MaxParticipantsCap: cfg.Chart.MaxParticipants,
		DefaultWinScore:    cfg.Arena.DefaultWinScore,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create charts service", err)
		os.Exit(1)
	}

	engine, err := settlement.NewEngine(
		dbClient,
		arenasRepo,
		chartsRepo,
		usersRepo,
		ledgerSvc,
		dispatcher,
		registry,
		realtimeMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement engine", err)
		os.Exit(1)
	}
	arenaSvc.SetSettler(engine)

	donationSvc, err := donations.NewService(dbClient, donations.NewRepository(gormDB), usersRepo, ledgerSvc, chartsRepo, dispatcher, logg, donations.Config{
		MinAmount:   cfg.Donation.MinAmount,
		MaxShoutout: cfg.Donation.MaxShoutout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create donations service", err)
		os.Exit(1)
	}

	wsHandler, err := ws.NewHandler(cfg.JWT, cfg.Realtime, registry, arenaSvc, userSvc, realtimeMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create websocket handler", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Charts:        chartSvc,
		Arenas:        arenaSvc,
		Settler:       engine,
		Donations:     donationSvc,
		Notifications: notificationSvc,
		Ledger:        ledgerSvc,
		Realtime:      wsHandler,
		Metrics:       promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithFields(ctx, map[string]any{"signal": sig.String()}), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
