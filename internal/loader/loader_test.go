package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Listen != config.DefaultListenAddress {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Store.Backend != store.BackendMemory {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Store.Retention != config.DefaultRetention {
		t.Errorf("retention = %v", cfg.Store.Retention)
	}
	if cfg.Queue.InitialBackoff != 500*time.Millisecond {
		t.Errorf("initial backoff = %v", cfg.Queue.InitialBackoff)
	}
	if cfg.Queue.MaxBackoff != 60*time.Second {
		t.Errorf("max backoff = %v", cfg.Queue.MaxBackoff)
	}
	if !cfg.Queue.Enabled {
		t.Error("queue should default to enabled")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  listen: "127.0.0.1:9090"
store:
  backend: duckdb
  retention: 48h
  duckdb:
    path: /tmp/readings.db
queue:
  receive_max: 5
  initial_backoff: 250ms
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9090" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Store.Backend != store.BackendDuckDB || cfg.Store.DuckDB.Path != "/tmp/readings.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.Retention != 48*time.Hour {
		t.Errorf("retention = %v", cfg.Store.Retention)
	}
	if cfg.Queue.ReceiveMax != 5 || cfg.Queue.InitialBackoff != 250*time.Millisecond {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	// Untouched sections keep their defaults.
	if cfg.Queue.MaxBackoff != config.DefaultMaxBackoff {
		t.Errorf("max backoff = %v", cfg.Queue.MaxBackoff)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("BUOYD_TEST_REDIS", "redis.internal:6379")

	cfg, err := Load(writeConfig(t, `
queue:
  redis:
    addr: ${BUOYD_TEST_REDIS}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.Redis.Addr != "redis.internal:6379" {
		t.Errorf("addr = %q", cfg.Queue.Redis.Addr)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	if _, err := Load(writeConfig(t, "store:\n  backend: cassandra\n")); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoad_RejectsBackoffInversion(t *testing.T) {
	if _, err := Load(writeConfig(t, "queue:\n  initial_backoff: 2m\n  max_backoff: 1m\n")); err == nil {
		t.Error("expected error when initial backoff exceeds the cap")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStoreConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = store.BackendSeries
	cfg.Store.Series.DataDir = "/var/lib/buoyd/series"

	sc := cfg.StoreConfig()
	if sc.Backend != store.BackendSeries || sc.Series.DataDir != "/var/lib/buoyd/series" {
		t.Errorf("unexpected store config: %+v", sc)
	}
	if sc.Series.Lookback != config.DefaultSeriesLookback {
		t.Errorf("lookback = %v", sc.Series.Lookback)
	}
}
