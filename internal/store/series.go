package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/seaward/buoyd/config"
	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/telemetry"
)

// SeriesStore is the columnar time-series backend.
//
// Each reading is stored as one physical field row (source, field, value,
// timestamp); the rows for one (source, timestamp) pair together form one
// logical multi-field point. Writes accumulate in an in-memory buffer that
// flushes to immutable Parquet segment files; reads run a DuckDB range query
// over the segments, merge in the buffered rows, and reconstruct points by
// grouping rows on their exact timestamp. A group only yields records once
// all required point fields have been observed — partial groups are dropped,
// not returned half-populated.
//
// Retention is coarser than the other backends: whole segment files age out
// of the 30-day lookback window instead of row-level deletes.
type SeriesStore struct {
	mu  sync.Mutex
	buf []segmentRow
	seq int64

	db        *sql.DB // meta database, also executes read_parquet queries
	dir       string
	lookback  time.Duration
	flushRows int

	now func() time.Time
	log interface {
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
	}
}

// segmentRow is the physical Parquet row shape.
type segmentRow struct {
	SourceID    int64   `parquet:"source_id"`
	Field       string  `parquet:"field,zstd"`
	Value       float64 `parquet:"value"`
	TimestampMs int64   `parquet:"timestamp_ms"`
	Seq         int64   `parquet:"seq"`
}

// OpenSeries opens the time-series backend rooted at cfg.DataDir.
func OpenSeries(cfg SeriesConfig) (*SeriesStore, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultSeriesDataDir
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = config.DefaultSeriesLookback
	}
	if cfg.FlushRows == 0 {
		cfg.FlushRows = config.DefaultSegmentFlushRows
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	db, err := sql.Open("duckdb", filepath.Join(cfg.DataDir, "meta.db"))
	if err != nil {
		return nil, errors.Wrap(err, "open meta db")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS deployments (
			buoy_id          INTEGER PRIMARY KEY,
			lat              DOUBLE NOT NULL,
			lon              DOUBLE NOT NULL,
			allowed_radius_m DOUBLE NOT NULL,
			deployed_at_ms   BIGINT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	s := &SeriesStore{
		db:        db,
		dir:       cfg.DataDir,
		lookback:  cfg.Lookback,
		flushRows: cfg.FlushRows,
		// Seed with wall-clock nanos so insertion order keeps resolving
		// ties across restarts.
		seq: time.Now().UnixNano(),
		now: time.Now,
		log: logging.Component("store.series"),
	}

	s.mu.Lock()
	s.pruneSegmentsLocked()
	s.mu.Unlock()

	return s, nil
}

// Update buffers each non-nil reading as a field row, flushing a segment once
// the buffer reaches the configured threshold.
func (s *SeriesStore) Update(ctx context.Context, readings []*telemetry.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		if r == nil {
			continue
		}
		s.seq++
		s.buf = append(s.buf, segmentRow{
			SourceID:    int64(r.SourceID),
			Field:       r.Type,
			Value:       r.Value,
			TimestampMs: r.TimestampMs,
			Seq:         s.seq,
		})
	}

	if len(s.buf) >= s.flushRows {
		return s.flushLocked()
	}
	return nil
}

// Flush forces buffered rows into a segment file.
func (s *SeriesStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *SeriesStore) flushLocked() error {
	if len(s.buf) == 0 {
		return nil
	}

	maxTs := int64(0)
	for _, row := range s.buf {
		if row.TimestampMs > maxTs {
			maxTs = row.TimestampMs
		}
	}

	name := fmt.Sprintf("seg-%d-%d.parquet", maxTs, s.seq)
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create segment")
	}

	w := parquet.NewGenericWriter[segmentRow](f)
	if _, err := w.Write(s.buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "write segment")
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "close segment writer")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close segment file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "publish segment")
	}

	s.log.Info("segment flushed", "file", name, "rows", len(s.buf))
	s.buf = s.buf[:0]

	s.pruneSegmentsLocked()
	return nil
}

// pruneSegmentsLocked deletes segment files whose newest row has aged out of
// the lookback window. The cutoff is parsed from the file name, so a file is
// only removed once every row in it is unreachable by queries.
func (s *SeriesStore) pruneSegmentsLocked() {
	cutoff := s.now().Add(-s.lookback).UnixMilli()

	matches, err := filepath.Glob(filepath.Join(s.dir, "seg-*.parquet"))
	if err != nil {
		return
	}

	for _, path := range matches {
		var maxTs, seq int64
		if _, err := fmt.Sscanf(filepath.Base(path), "seg-%d-%d.parquet", &maxTs, &seq); err != nil {
			continue
		}
		if maxTs >= cutoff {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn("segment prune failed", "file", path, "error", err)
			continue
		}
		s.log.Info("segment pruned", "file", filepath.Base(path))
	}
}

// rawRows returns all retained field rows for the source, merging segment
// files with the in-memory buffer.
func (s *SeriesStore) rawRows(ctx context.Context, sourceID int) ([]segmentRow, error) {
	cutoff := s.now().Add(-s.lookback).UnixMilli()

	var rows []segmentRow

	pattern := filepath.Join(s.dir, "seg-*.parquet")
	matches, err := filepath.Glob(pattern)
	if err == nil && len(matches) > 0 {
		result, err := s.db.QueryContext(ctx, `
			SELECT source_id, field, value, timestamp_ms, seq
			FROM read_parquet(?)
			WHERE source_id = ? AND timestamp_ms >= ?
		`, pattern, sourceID, cutoff)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, err.Error())
		}
		defer result.Close()

		for result.Next() {
			var row segmentRow
			if err := result.Scan(&row.SourceID, &row.Field, &row.Value, &row.TimestampMs, &row.Seq); err != nil {
				return nil, fmt.Errorf("scan segment row: %w", err)
			}
			rows = append(rows, row)
		}
		if err := result.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, err.Error())
		}
	}

	s.mu.Lock()
	for _, row := range s.buf {
		if row.SourceID == int64(sourceID) && row.TimestampMs >= cutoff {
			rows = append(rows, row)
		}
	}
	s.mu.Unlock()

	return rows, nil
}

// point is one reconstructed multi-field record.
type point struct {
	timestampMs int64
	fields      map[string]segmentRow
}

// complete reports whether every required point field has been observed.
func (p *point) complete() bool {
	for _, f := range telemetry.PointFields {
		if _, ok := p.fields[f]; !ok {
			return false
		}
	}
	return true
}

// reconstruct buckets rows by exact timestamp and keeps only complete
// buckets. Within a bucket a later-inserted row wins per field. The engine
// does not guarantee field-write ordering, so results are sorted by timestamp
// after grouping.
func reconstruct(rows []segmentRow) []point {
	buckets := make(map[int64]*point)
	for _, row := range rows {
		p, ok := buckets[row.TimestampMs]
		if !ok {
			p = &point{timestampMs: row.TimestampMs, fields: make(map[string]segmentRow)}
			buckets[row.TimestampMs] = p
		}
		if prev, ok := p.fields[row.Field]; !ok || row.Seq > prev.Seq {
			p.fields[row.Field] = row
		}
	}

	points := make([]point, 0, len(buckets))
	for _, p := range buckets {
		if p.complete() {
			points = append(points, *p)
		}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].timestampMs < points[j].timestampMs
	})
	return points
}

// readings flattens a point back into canonical single-measurement readings:
// the required fields in their fixed order, then any extra fields by
// insertion order.
func (p *point) readings() []telemetry.Reading {
	out := make([]telemetry.Reading, 0, len(p.fields))

	for _, f := range telemetry.PointFields {
		out = append(out, rowToReading(p.fields[f]))
	}

	var extras []segmentRow
	for field, row := range p.fields {
		if !isPointField(field) {
			extras = append(extras, row)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i].Seq < extras[j].Seq })
	for _, row := range extras {
		out = append(out, rowToReading(row))
	}

	return out
}

func isPointField(field string) bool {
	for _, f := range telemetry.PointFields {
		if f == field {
			return true
		}
	}
	return false
}

func rowToReading(row segmentRow) telemetry.Reading {
	return telemetry.Reading{
		SourceID:    int(row.SourceID),
		Type:        row.Field,
		Value:       row.Value,
		TimestampMs: row.TimestampMs,
	}
}

// History reconstructs all complete points for the source. A source with raw
// rows but no complete point is known, so it yields an empty history rather
// than ErrUnknownSource.
func (s *SeriesStore) History(ctx context.Context, sourceID int) ([]telemetry.Reading, error) {
	rows, err := s.rawRows(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewUnknownSource(sourceID)
	}

	var history []telemetry.Reading
	for _, p := range reconstruct(rows) {
		history = append(history, p.readings()...)
	}
	return history, nil
}

// Latest returns the requested field of the most recent complete point,
// absent when no complete point carries it.
func (s *SeriesStore) Latest(ctx context.Context, sourceID int, measurementType string) (*telemetry.Reading, error) {
	rows, err := s.rawRows(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewUnknownSource(sourceID)
	}

	points := reconstruct(rows)
	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		if measurementType == "" {
			// Most recent point: report its last-inserted field.
			var newest segmentRow
			for _, row := range p.fields {
				if row.Seq > newest.Seq {
					newest = row
				}
			}
			r := rowToReading(newest)
			return &r, nil
		}
		if row, ok := p.fields[measurementType]; ok {
			r := rowToReading(row)
			return &r, nil
		}
	}

	return nil, nil
}

// SaveDeployment upserts the deployment in the meta database.
func (s *SeriesStore) SaveDeployment(ctx context.Context, dep *telemetry.Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deployments (buoy_id, lat, lon, allowed_radius_m, deployed_at_ms)
		VALUES (?, ?, ?, ?, ?)
	`, dep.BuoyID, dep.Lat, dep.Lon, dep.AllowedRadiusMeters, dep.DeployedAtMs)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Deployment fetches the deployment from the meta database.
func (s *SeriesStore) Deployment(ctx context.Context, buoyID int) (*telemetry.Deployment, bool, error) {
	var dep telemetry.Deployment
	err := s.db.QueryRowContext(ctx, `
		SELECT buoy_id, lat, lon, allowed_radius_m, deployed_at_ms
		FROM deployments WHERE buoy_id = ?
	`, buoyID).Scan(&dep.BuoyID, &dep.Lat, &dep.Lon, &dep.AllowedRadiusMeters, &dep.DeployedAtMs)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return &dep, true, nil
}

// Close flushes buffered rows and closes the meta database.
func (s *SeriesStore) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
