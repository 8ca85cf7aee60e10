package main

import (
	"context"
	"fmt"
	"log"

	"github.com/ilinovom/feedbot/internal/app"
	"github.com/ilinovom/feedbot/internal/config"
	"github.com/ilinovom/feedbot/internal/logger"
	"github.com/ilinovom/feedbot/internal/repository"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		log.Fatal(err)
	}
	if err := run(context.Background(), cfg); err != nil {
		logger.Errorf("bot: %v", err)
		logger.Sync()
		log.Fatal(err)
	}
	logger.Sync()
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer repo.Close()
	logger.Infof("state store: %s", cfg.StoreDriver)

	application := app.New(cfg, repo)
	return application.Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.StateStore, error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		return repository.NewRedisStore(ctx, cfg.RedisURL)
	case config.DriverPostgres:
		return repository.NewPostgresStore(cfg.DBConnString)
	case config.DriverSQLite:
		return repository.NewSQLiteStore(cfg.SQLitePath)
	case config.DriverFile:
		return repository.NewFileStore(cfg.StateFile)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
