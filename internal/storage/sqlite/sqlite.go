// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/m3ts/referee/internal/database"
	gormstorage "github.com/m3ts/referee/internal/storage/gorm"
	"github.com/m3ts/referee/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval  time.Duration
	DumpPath      string // Path for VACUUM INTO dumps, empty disables dumping
	FlushInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// one connection, so that the dump and the writer never lock each other out
	sqlDB.SetMaxOpenConns(1)

	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Logger:        logger,
			FlushInterval: cfg.FlushInterval,
		}),
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}
	return nil
}

// EndMatch finalizes the match and dumps the database.
func (b *Backend) EndMatch(m *core.Match) error {
	if err := b.Backend.EndMatch(m); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, closes the GORM backend and writes a last dump.
func (b *Backend) Close() error {
	close(b.stopChan)
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the database to DumpPath. It is a no-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// ExportedFilePath returns the dump path.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
