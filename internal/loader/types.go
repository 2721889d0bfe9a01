// Package loader - Configuration Types
//
// Defines the YAML configuration structure for buoyd.
package loader

import (
	"fmt"
	"time"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/store"
)

// Config is the root configuration structure for buoyd.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Queue  QueueConfig  `yaml:"queue"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// StoreConfig selects and parameterizes the storage backend.
type StoreConfig struct {
	Backend   string        `yaml:"backend"` // memory, duckdb, series
	Retention time.Duration `yaml:"retention"`

	DuckDB struct {
		Path string `yaml:"path"`
	} `yaml:"duckdb"`

	Series struct {
		DataDir   string        `yaml:"data_dir"`
		Lookback  time.Duration `yaml:"lookback"`
		FlushRows int           `yaml:"flush_rows"`
	} `yaml:"series"`
}

// QueueConfig holds the consumer loop and transport settings.
type QueueConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReceiveMax     int           `yaml:"receive_max"`
	ReceiveWait    time.Duration `yaml:"receive_wait"`
	BaseSleep      time.Duration `yaml:"base_sleep"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	ErrorPause     time.Duration `yaml:"error_pause"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Stream   string `yaml:"stream"`
		Group    string `yaml:"group"`
		Consumer string `yaml:"consumer"`
	} `yaml:"redis"`
}

// DefaultConfig returns a config populated with the documented defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Listen:          config.DefaultListenAddress,
			ShutdownTimeout: config.DefaultShutdownTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Backend:   config.DefaultStoreBackend,
			Retention: config.DefaultRetention,
		},
		Queue: QueueConfig{
			Enabled:        true,
			ReceiveMax:     config.DefaultReceiveMax,
			ReceiveWait:    config.DefaultReceiveWait,
			BaseSleep:      config.DefaultBaseSleep,
			InitialBackoff: config.DefaultInitialBackoff,
			MaxBackoff:     config.DefaultMaxBackoff,
			ErrorPause:     config.DefaultErrorPause,
		},
	}
	cfg.Store.DuckDB.Path = config.DefaultDuckDBPath
	cfg.Store.Series.DataDir = config.DefaultSeriesDataDir
	cfg.Store.Series.Lookback = config.DefaultSeriesLookback
	cfg.Store.Series.FlushRows = config.DefaultSegmentFlushRows
	cfg.Queue.Redis.Addr = config.DefaultRedisAddr
	cfg.Queue.Redis.Stream = config.DefaultStream
	cfg.Queue.Redis.Group = config.DefaultConsumerGroup
	return cfg
}

// StoreConfig converts the YAML section to the store package's config.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Backend:   c.Store.Backend,
		Retention: c.Store.Retention,
		DuckDB:    store.DuckDBConfig{Path: c.Store.DuckDB.Path},
		Series: store.SeriesConfig{
			DataDir:   c.Store.Series.DataDir,
			Lookback:  c.Store.Series.Lookback,
			FlushRows: c.Store.Series.FlushRows,
		},
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendDuckDB, store.BackendSeries:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Store.Retention < 0 {
		return fmt.Errorf("store.retention must not be negative")
	}
	if c.Queue.ReceiveMax < 0 {
		return fmt.Errorf("queue.receive_max must not be negative")
	}
	if c.Queue.InitialBackoff > c.Queue.MaxBackoff && c.Queue.MaxBackoff > 0 {
		return fmt.Errorf("queue.initial_backoff exceeds queue.max_backoff")
	}
	return nil
}
