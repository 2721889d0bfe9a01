// Package config provides configuration defaults and utilities for buoyd.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP API listen address.
	// Override via config: server.listen
	DefaultListenAddress = "0.0.0.0:8080"

	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	// Override via config: server.shutdown_timeout
	DefaultShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRetention is how long readings remain queryable, measured from
	// their own timestamp. Enforced opportunistically on every store update.
	// Override via config: store.retention
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultSeriesLookback is the query window of the time-series backend.
	// Intentionally wider than DefaultRetention because that backend prunes
	// whole segment files rather than individual rows.
	// Override via config: store.series.lookback
	DefaultSeriesLookback = 30 * 24 * time.Hour
)

// =============================================================================
// Queue Consumer Defaults
// =============================================================================

const (
	// DefaultReceiveMax is the maximum number of messages fetched per poll.
	// Override via config: queue.receive_max
	DefaultReceiveMax = 10

	// DefaultReceiveWait is the long-poll wait of a single receive call.
	// The transport blocks server-side up to this duration waiting for at
	// least one message.
	// Override via config: queue.receive_wait
	DefaultReceiveWait = 10 * time.Second

	// DefaultBaseSleep is the short pause after a non-empty batch, on the
	// heuristic that more messages are probably waiting.
	// Override via config: queue.base_sleep
	DefaultBaseSleep = 100 * time.Millisecond

	// DefaultInitialBackoff is the first empty-poll sleep.
	// Override via config: queue.initial_backoff
	DefaultInitialBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff caps the exponential empty-poll backoff.
	// Override via config: queue.max_backoff
	DefaultMaxBackoff = 60 * time.Second

	// DefaultErrorPause is the fixed sleep after a transport-level receive
	// failure, before polling resumes. Does not interact with the backoff.
	// Override via config: queue.error_pause
	DefaultErrorPause = time.Second
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultStoreBackend selects the store implementation at startup.
	// One of "memory", "duckdb", "series".
	// Override via config: store.backend
	DefaultStoreBackend = "memory"

	// DefaultDuckDBPath is the DuckDB database file for the relational backend.
	// Override via config: store.duckdb.path
	DefaultDuckDBPath = "buoyd.db"

	// DefaultSeriesDataDir holds the time-series backend's Parquet segments.
	// Override via config: store.series.data_dir
	DefaultSeriesDataDir = "data/series"

	// DefaultSegmentFlushRows is the buffered row count that triggers a
	// segment flush in the time-series backend.
	// Override via config: store.series.flush_rows
	DefaultSegmentFlushRows = 4096
)

// =============================================================================
// Redis Stream Defaults
// =============================================================================

const (
	// DefaultRedisAddr is the Redis server address for the queue transport.
	// Override via config: queue.redis.addr
	DefaultRedisAddr = "localhost:6379"

	// DefaultStream is the Redis stream carrying buoy readings.
	// Override via config: queue.redis.stream
	DefaultStream = "buoy:readings"

	// DefaultConsumerGroup is the stream consumer group name. A single
	// consumer instance per process is assumed; the group exists so that
	// unacknowledged messages survive restarts and are redelivered.
	// Override via config: queue.redis.group
	DefaultConsumerGroup = "buoyd"
)
