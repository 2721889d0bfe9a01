// Package store provides persistence for buoy readings and deployments.
//
// Three backends implement the same Store contract: an in-process concurrent
// map (memory), a row-oriented DuckDB table (duckdb), and a columnar
// Parquet-segment engine queried through DuckDB (series). The backend is
// selected once at process startup via Open; callers only ever see the
// interface.
package store

import (
	"context"
	"time"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/telemetry"
)

var (
	ErrUnknownSource = errors.ErrUnknownSource
	ErrClosed        = errors.ErrClosed
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDuckDB = "duckdb"
	BackendSeries = "series"
)

// Store is the contract every backend satisfies.
//
// All reads return independent copies; callers never receive references into
// store-internal structures. Duplicate readings are stored twice: the queue
// feed is at-least-once and idempotence is deliberately not provided here.
type Store interface {
	// Update appends each non-nil reading to its series, then enforces the
	// retention window. Nil entries are silently skipped.
	Update(ctx context.Context, readings []*telemetry.Reading) error

	// History returns all retained readings for the source across measurement
	// types, ordered by timestamp ascending with ties broken by insertion
	// order. Returns ErrUnknownSource when nothing is retained for the id.
	History(ctx context.Context, sourceID int) ([]telemetry.Reading, error)

	// Latest returns the most recent retained reading for the source,
	// restricted to one measurement type when measurementType is non-empty.
	// When two readings share a timestamp the later insertion wins.
	// Returns ErrUnknownSource when the source is entirely unknown, and
	// (nil, nil) when the source is known but has no reading of the
	// requested type.
	Latest(ctx context.Context, sourceID int, measurementType string) (*telemetry.Reading, error)

	// SaveDeployment persists a geofence assignment, replacing any prior
	// deployment for the same buoy. Deployments do not expire.
	SaveDeployment(ctx context.Context, dep *telemetry.Deployment) error

	// Deployment returns the active deployment for the buoy, with ok=false
	// when none has been saved.
	Deployment(ctx context.Context, buoyID int) (*telemetry.Deployment, bool, error)

	// Close releases backend resources, flushing any buffered writes.
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Backend is one of "memory", "duckdb", "series".
	Backend string

	// Retention is the reading retention window. Zero means the default
	// seven days.
	Retention time.Duration

	// DuckDB configures the relational backend.
	DuckDB DuckDBConfig

	// Series configures the time-series backend.
	Series SeriesConfig
}

// DuckDBConfig configures the relational backend.
type DuckDBConfig struct {
	// Path is the database file. Empty means in-memory (tests only).
	Path string
}

// SeriesConfig configures the time-series backend.
type SeriesConfig struct {
	// DataDir holds Parquet segment files and the meta database.
	DataDir string

	// Lookback is the query window. Zero means the default thirty days.
	Lookback time.Duration

	// FlushRows is the buffered row count that triggers a segment flush.
	FlushRows int
}

// Open creates the backend named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	if cfg.Retention == 0 {
		cfg.Retention = config.DefaultRetention
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.Retention), nil
	case BackendDuckDB:
		return OpenRelational(cfg.DuckDB.Path, cfg.Retention)
	case BackendSeries:
		return OpenSeries(cfg.Series)
	default:
		return nil, errors.NewInvalidValue("store.backend", cfg.Backend, "expected memory, duckdb or series")
	}
}
