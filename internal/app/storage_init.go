package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/file"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shop/internal/storage/sqlite"
)

// openStorage открывает хранилище документов выбранного драйвера.
// Для postgres при включённом PostgresAutoMigrate применяются встроенные миграции.
func openStorage(ctx context.Context, cfg Config, logger *log.Entry) (storage.Store, error) {
	logger = logger.WithField("storage_driver", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Warn("memory storage selected, data is lost on exit")
		return memory.NewStore(), nil

	case StorageDriverFile:
		store, err := file.Open(cfg.DataDir, logger.WithField("component", "file-store"))
		if err != nil {
			return nil, err
		}
		logger.WithField("data_dir", store.Dir()).Info("file storage opened")
		return store, nil

	case StorageDriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite storage requires sqlite_path")
		}
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLitePath).Info("sqlite storage opened")
		return store, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires postgres_dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			version, applied, err := store.MigrationStatus(ctx)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("read migration status: %w", err)
			}
			logger.WithFields(log.Fields{"schema_version": version, "applied": applied}).Info("postgres migrations applied")
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// closeStorage закрывает хранилище, ошибку только логирует.
func closeStorage(store storage.Store, logger *log.Entry) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}
