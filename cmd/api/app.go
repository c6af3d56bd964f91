package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waitemata.arrivals.nz/gtfsdb"
	"waitemata.arrivals.nz/internal/app"
	"waitemata.arrivals.nz/internal/appconf"
	"waitemata.arrivals.nz/internal/clock"
	"waitemata.arrivals.nz/internal/gtfs"
	"waitemata.arrivals.nz/internal/logging"
	"waitemata.arrivals.nz/internal/maintenance"
	"waitemata.arrivals.nz/internal/metrics"
	"waitemata.arrivals.nz/internal/realtime"
	"waitemata.arrivals.nz/internal/restapi"
)

// BuildApplication creates the Application with all dependencies: logger,
// store, GTFS manager, realtime service, and metrics. The returned cleanup
// function closes the store and stops the metrics collector.
func BuildApplication(cfg appconf.Config) (*app.Application, func(), error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stdout, level)

	m := metrics.NewWithLogger(logger)
	clk := clock.RealClock{}

	ctx := context.Background()
	client, err := gtfsdb.NewClient(ctx, gtfsdb.NewConfig(cfg.DatabasePath, cfg.Env, cfg.Verbose), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	manager, err := gtfs.NewManager(ctx, client, cfg.GTFSURL, logger, m, clk)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("initializing GTFS manager: %w", err)
	}

	realtimeService := realtime.NewService(client, cfg.RealtimeURL, logger, m, clk)

	m.StartDBStatsCollector(client.DB, 15*time.Second)

	coreApp := &app.Application{
		Config:      cfg,
		Logger:      logger,
		GtfsManager: manager,
		Realtime:    realtimeService,
		Clock:       clk,
		Metrics:     m,
	}

	cleanup := func() {
		m.Shutdown()
		client.Close()
	}
	return coreApp, cleanup, nil
}

// CreateServer configures the HTTP server: routes with their per-request
// middleware, security headers, and request logging outermost.
func CreateServer(coreApp *app.Application) *http.Server {
	api := restapi.NewRestAPI(coreApp)

	routed := api.SetupAPIRoutes()
	secureHandler := api.WithSecurityHeaders(routed)

	requestLogMiddleware := restapi.NewRequestLoggingMiddleware(coreApp.Logger)
	handler := requestLogMiddleware(secureHandler)

	return &http.Server{
		Addr:         coreApp.Config.ListenAddress,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
}

// Run starts the initial sync, the HTTP server, the realtime poller, and
// the maintenance loop, then waits for a shutdown signal or a fatal error
// from any of them. Shutdown drains the server for up to 30 seconds.
func Run(srv *http.Server, coreApp *app.Application) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coreApp.Logger.Info("running initial sync")
	if err := coreApp.GtfsManager.SyncAndIndex(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}

	coreApp.Logger.Info("starting server", "addr", srv.Addr)

	serverErrors := make(chan error, 3)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := coreApp.Realtime.Run(ctx); err != nil {
			serverErrors <- fmt.Errorf("realtime loop: %w", err)
		}
	}()

	scheduler := maintenance.NewScheduler(coreApp.GtfsManager, coreApp.Realtime, coreApp.Logger, coreApp.Metrics, coreApp.Clock)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			serverErrors <- fmt.Errorf("maintenance loop: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		coreApp.Logger.Info("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	coreApp.Logger.Info("server exited")
	return nil
}
