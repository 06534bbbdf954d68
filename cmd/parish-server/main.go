package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stbhakita/parish/internal/app"
	"github.com/stbhakita/parish/internal/config"
	"github.com/stbhakita/parish/internal/logging"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (defaults only when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Parish Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// A missing .env is normal in production
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("environment", cfg.Server.Environment).
		Msg("starting parish server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize")
		os.Exit(1)
	}

	runErr := application.Run(ctx)

	if err := application.Close(); err != nil {
		logging.Error().Err(err).Msg("failed to close database")
	}

	if runErr != nil {
		logging.Error().Err(runErr).Msg("server stopped with error")
		os.Exit(1)
	}

	logging.Info().Msg("server stopped")
}
