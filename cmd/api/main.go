package main

import (
	"flag"
	"log/slog"
	"os"

	"waitemata.arrivals.nz/internal/appconf"
)

func main() {
	var cfg appconf.Config
	var envFlag string

	// Flags mirror the environment variables; a non-empty flag wins.
	flag.StringVar(&envFlag, "env", "development", "Environment (development|test|production)")
	flag.StringVar(&cfg.DatabasePath, "database-path", "", "Path to the SQLite database (DATABASE_PATH)")
	flag.StringVar(&cfg.ListenAddress, "listen-address", "", "Address for the HTTP server (LISTEN_ADDRESS)")
	flag.StringVar(&cfg.AllowOrigin, "allow-origin", "", "CORS origin, \"*\" for any (ALLOW_ORIGIN)")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error (LOG_LEVEL)")
	flag.StringVar(&cfg.GTFSURL, "gtfs-url", "", "URL of the static GTFS zip archive (GTFS_URL)")
	flag.StringVar(&cfg.RealtimeURL, "realtime-url", "", "URL of the realtime feed (REALTIME_URL)")
	flag.IntVar(&cfg.RateLimit, "rate-limit", 10, "Requests per second for management endpoints")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Verbose logging")
	flag.Parse()

	cfg.Env = appconf.EnvFlagToEnvironment(envFlag)

	if err := cfg.LoadFromEnv(); err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	coreApp, cleanup, err := BuildApplication(cfg)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := CreateServer(coreApp)

	if err := Run(srv, coreApp); err != nil {
		coreApp.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
