package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

func factory() errors.Factory {
	return errors.New()
}

type sqliteCollector struct {
	db *sql.DB
	mu sync.Mutex
}

// NewCollector opens (creating if needed) the SQLite sample store.
func NewCollector(cfg Config) (Collector, error) {
	errFactory := factory()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	logger.Debug().Msgf("Initializing telemetry store at: %s", cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteCollector{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS fanctl_samples (
            timestamp INTEGER NOT NULL,
            device_id INTEGER NOT NULL,
            temperature INTEGER NOT NULL,
            target_fan_percent INTEGER NOT NULL,
            PRIMARY KEY (timestamp, device_id)
        )
    `)
	if err != nil {
		return factory().Wrap(ErrSchemaFailed, err)
	}

	return nil
}

func (c *sqliteCollector) Record(ctx context.Context, sample *Sample) error {
	errFactory := factory()

	if sample == nil {
		return errFactory.New(ErrInvalidSample)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
        INSERT INTO fanctl_samples (
            timestamp, device_id, temperature, target_fan_percent
        ) VALUES (?, ?, ?, ?)
        ON CONFLICT(timestamp, device_id) DO UPDATE SET
            temperature = excluded.temperature,
            target_fan_percent = excluded.target_fan_percent
    `,
		sample.Timestamp.Unix(),
		sample.DeviceID,
		sample.Temperature,
		sample.TargetFanPercent,
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (c *sqliteCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.Close(); err != nil {
		return factory().Wrap(ErrStorageClose, err)
	}
	return nil
}
