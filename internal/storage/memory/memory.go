// Package memory keeps a match and its points in memory and exports them to
// JSON when the match ends.
package memory

import (
	"errors"
	"sync"

	"github.com/m3ts/referee/internal/config"
	"github.com/m3ts/referee/pkg/core"
)

var errNoMatch = errors.New("no match started")

// Backend stores match data in memory and exports to JSON
type Backend struct {
	cfg    config.MemoryConfig
	match  *core.Match
	points []core.PointRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMatch begins recording a new match, dropping anything held for a previous one.
func (b *Backend) StartMatch(m *core.Match) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *m
	b.match = &cp
	b.points = nil
	return nil
}

// RecordPoint appends a decided point.
func (b *Backend) RecordPoint(rec *core.PointRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return errNoMatch
	}
	b.points = append(b.points, *rec)
	return nil
}

// EndMatch copies the final match state and writes the export file.
func (b *Backend) EndMatch(m *core.Match) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return errNoMatch
	}
	cp := *m
	b.match = &cp
	return b.exportJSON()
}

// Points returns a copy of the points recorded for the current match.
func (b *Backend) Points() []core.PointRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.PointRecord(nil), b.points...)
}

// ExportedFilePath returns the path of the last export, empty before the first one.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
