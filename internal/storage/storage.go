// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/m3ts/referee/pkg/core"
)

// ErrUnknownStorage is returned for a storage type that has no backend.
var ErrUnknownStorage = errors.New("unknown storage type")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Match management
	StartMatch(m *core.Match) error
	EndMatch(m *core.Match) error

	// Point recording
	RecordPoint(rec *core.PointRecord) error
}

// Exporter is an optional interface for backends that write a file per match.
type Exporter interface {
	ExportedFilePath() string
}
