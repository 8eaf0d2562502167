// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
// If Postgres cannot be reached at Init the backend keeps recording into an
// in-memory SQLite database so that no point is lost.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/m3ts/referee/internal/database"
	gormstorage "github.com/m3ts/referee/internal/storage/gorm"
)

// Config holds configuration for the Postgres storage backend.
type Config struct {
	FlushInterval time.Duration
}

// Backend wraps the GORM backend with the Postgres connection manager.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
}

// New creates a new Postgres storage backend. The connection is opened by Init
// from the db.* configuration.
func New(cfg Config, dbLogger zerolog.Logger, logger *slog.Logger) *Backend {
	b := &Backend{manager: database.NewManager(dbLogger)}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		Open:          b.open,
		Logger:        logger,
		FlushInterval: cfg.FlushInterval,
	})
	return b
}

// Local reports whether the backend fell back to SQLite.
func (b *Backend) Local() bool {
	return b.manager.ShouldSaveLocal
}

func (b *Backend) open() (*gorm.DB, error) {
	if err := b.manager.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return b.manager.DB, nil
}
