// Package gormstorage implements the storage.Backend interface on top of GORM.
// Points are queued and written in batches by a background goroutine; matches
// are written synchronously because there is one per session.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/m3ts/referee/internal/database"
	"github.com/m3ts/referee/internal/model"
	"github.com/m3ts/referee/internal/model/convert"
	"github.com/m3ts/referee/internal/queue"
	"github.com/m3ts/referee/pkg/core"
)

// DefaultFlushInterval is how often queued points are written.
const DefaultFlushInterval = time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as is. If nil, Open is called by Init.
	DB            *gorm.DB
	Open          func() (*gorm.DB, error)
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	points *queue.Queue[model.Point]

	writeMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		points: queue.New[model.Point](),
	}
}

// Init opens the database if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		if b.deps.Open == nil {
			return errors.New("no database configured")
		}
		db, err := b.deps.Open()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		b.deps.DB = db
	}

	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.writeLoop(b.stopChan)
	return nil
}

// DB returns the underlying connection, nil before Init.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	b.stopChan = nil
	b.wg.Wait()
	return b.Flush()
}

// StartMatch inserts the match row.
func (b *Backend) StartMatch(m *core.Match) error {
	row := convert.CoreToMatch(*m)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// EndMatch writes pending points and stores the final match result.
func (b *Backend) EndMatch(m *core.Match) error {
	if err := b.Flush(); err != nil {
		return err
	}
	row := convert.CoreToMatch(*m)
	if err := b.deps.DB.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	return nil
}

// RecordPoint converts the record and pushes it to the write queue.
func (b *Backend) RecordPoint(rec *core.PointRecord) error {
	b.points.Push(convert.CoreToPoint(*rec))
	return nil
}

// Pending returns the number of queued points.
func (b *Backend) Pending() int {
	return b.points.Len()
}

// Flush writes all queued points now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return writeQueue(b.deps.DB, b.points, "points")
}

func (b *Backend) writeLoop(stop <-chan struct{}) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := time.Now()
			n := b.points.Len()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Error writing queue", "error", err)
			} else if n > 0 {
				b.deps.Logger.Debug("Wrote queue", "items", n, "duration", time.Since(start))
			}
		}
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are put back in front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string) error {
	if db == nil || q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		q.Requeue(items...)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	return nil
}
