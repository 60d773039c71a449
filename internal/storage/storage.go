// Package storage opens the repository backend named in the configuration.
package storage

import (
	"context"
	"fmt"
	"os"

	"bizops-backend/internal/config"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
	"bizops-backend/internal/repository/firestore"
	"bizops-backend/internal/repository/memory"
	"bizops-backend/internal/repository/postgres"
)

// Backend is an opened store plus a cheap reachability probe.
type Backend struct {
	Store *repository.Store
	Ping  func(ctx context.Context) error
}

func (b *Backend) Close() error {
	return b.Store.Close()
}

// Open connects to the backend selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Driver {
	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		logger.Info("Database connection established")
		return &Backend{Store: postgres.NewStore(db), Ping: db.PingContext}, nil

	case "firestore":
		if cfg.Firestore.EmulatorHost != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost)
		}
		logger.Info("Connecting to Firestore...", "project_id", cfg.Firestore.ProjectID, "emulator", cfg.Firestore.EmulatorHost != "")
		client, err := firestore.Open(ctx, firestore.Config{
			ProjectID:       cfg.Firestore.ProjectID,
			CredentialsFile: cfg.Firestore.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		ping := func(ctx context.Context) error { return firestore.Ping(ctx, client) }
		return &Backend{Store: firestore.NewStore(client), Ping: ping}, nil

	case "memory":
		logger.Warn("Using in-memory store; data is lost on exit")
		return &Backend{Store: memory.NewStore(), Ping: func(context.Context) error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}
