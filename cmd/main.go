package main

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpa/internal/retry"
	"github.com/desertthunder/ytpa/internal/services"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/urfave/cli/v3"
)

// EnvConfig overrides the default config.toml location.
const EnvConfig = "YTPA_CONFIG"

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	configPath := "config.toml"
	if v := os.Getenv(EnvConfig); v != "" {
		configPath = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	} else {
		config.ApplyEnv()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("invalid configuration", "error", err)
	}

	var platform services.Platform
	clientOpts, canWrite, platformErr := services.ClientOptions(ctx, config.Credentials.YouTube)
	if platformErr == nil {
		svc, err := services.NewYouTubeService(ctx, services.Options{
			RateLimit: config.Adder.RateLimit,
			Retry:     retry.FromConfig(config.Retry),
			Logger:    shared.WithLogger(logger, "component", "youtube"),
		}, clientOpts...)
		if err == nil {
			platform = svc
		}
		platformErr = err
	}
	if platformErr != nil {
		logger.Debug("YouTube client unavailable", "error", platformErr)
	}

	db, err := openDatabase(config)
	if err != nil {
		logger.Debug("database unavailable", "path", config.Database.Path, "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:      config,
		ConfigPath:  configPath,
		Platform:    platform,
		PlatformErr: platformErr,
		CanWrite:    canWrite,
		DB:          db,
		Logger:      logger,
	})

	app := &cli.Command{
		Name:    "ytpa",
		Usage:   "YouTube playlist automation: manual adds, trims and ghost subscriptions",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	err = app.Run(ctx, os.Args)
	if db != nil {
		db.Close()
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// openDatabase opens the configured database and applies pending migrations.
// Only an existing database is opened so `--help` and `setup` never create one.
func openDatabase(config *shared.Config) (*sql.DB, error) {
	if config.Database.Path != ":memory:" {
		if _, err := os.Stat(config.Database.Path); err != nil {
			return nil, err
		}
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
