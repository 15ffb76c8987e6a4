package journal

import (
	"time"

	"codeberg.org/mutker/proxlock/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/proxlock/journal.db"
	defaultBatchSize    = 16
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	DBPath          string
	Enabled         bool
	BatchSize       int
	BatchTimeout    time.Duration
	BackupOnMigrate bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		Enabled:         false,
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
		BackupOnMigrate: true,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the journal is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, c)
	}
	return nil
}
