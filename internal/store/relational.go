package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/seaward/buoyd/internal/errors"
	"github.com/seaward/buoyd/internal/logging"
	"github.com/seaward/buoyd/internal/telemetry"
)

// RelationalStore persists readings in a row-oriented DuckDB table.
//
// Every logical operation acquires a connection from the pool and releases it
// on all exit paths; no connection is held across calls, so concurrency
// safety is delegated to database/sql. Retention is enforced globally on
// every Update: one DELETE sweeps expired rows for all sources, not just the
// updated ones. Insert and prune are separate statements on purpose; if the
// prune fails the stale rows are caught by a later call.
type RelationalStore struct {
	db        *sql.DB
	retention time.Duration
	seq       atomic.Int64
	now       func() time.Time
	log       interface {
		Info(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

const relationalSchema = `
CREATE TABLE IF NOT EXISTS readings (
	ins_seq          BIGINT NOT NULL,
	source_id        INTEGER NOT NULL,
	measurement_type VARCHAR NOT NULL,
	value            DOUBLE NOT NULL,
	timestamp_ms     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_source_ts ON readings (source_id, timestamp_ms);

CREATE TABLE IF NOT EXISTS deployments (
	buoy_id          INTEGER PRIMARY KEY,
	lat              DOUBLE NOT NULL,
	lon              DOUBLE NOT NULL,
	allowed_radius_m DOUBLE NOT NULL,
	deployed_at_ms   BIGINT NOT NULL
);
`

// OpenRelational opens (creating if necessary) a DuckDB-backed store at path.
// An empty path opens an in-memory database, which is only useful in tests.
func OpenRelational(path string, retention time.Duration) (*RelationalStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, "open duckdb")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping duckdb")
	}

	if _, err := db.ExecContext(ctx, relationalSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}

	s := &RelationalStore{
		db:        db,
		retention: retention,
		now:       time.Now,
		log:       logging.Component("store.duckdb"),
	}

	// Resume the insertion sequence so timestamp ties keep resolving in
	// insertion order across restarts.
	var maxSeq sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(ins_seq) FROM readings`).Scan(&maxSeq); err == nil && maxSeq.Valid {
		s.seq.Store(maxSeq.Int64)
	}

	return s, nil
}

// maxReadingsPerInsert bounds parameters per statement; 5 columns * 100 rows
// keeps us well under engine limits.
const maxReadingsPerInsert = 100

// Update performs one batched insert of all non-nil readings followed by one
// global retention sweep.
func (s *RelationalStore) Update(ctx context.Context, readings []*telemetry.Reading) error {
	rows := make([]*telemetry.Reading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			rows = append(rows, r)
		}
	}

	for i := 0; i < len(rows); i += maxReadingsPerInsert {
		end := i + maxReadingsPerInsert
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertChunk(ctx, rows[i:end]); err != nil {
			return errors.Wrap(err, "insert readings")
		}
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE timestamp_ms < ?`, cutoff)
	if err != nil {
		// The insert already succeeded; a later update will prune the
		// leftovers.
		s.log.Error("retention sweep failed", "error", err)
		return nil
	}
	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		s.log.Info("pruned expired readings", "rows", deleted)
	}

	return nil
}

func (s *RelationalStore) insertChunk(ctx context.Context, rows []*telemetry.Reading) error {
	if len(rows) == 0 {
		return nil
	}

	query, args := s.buildMultiRowInsert(rows)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// buildMultiRowInsert builds a single multi-row INSERT for the chunk.
func (s *RelationalStore) buildMultiRowInsert(rows []*telemetry.Reading) (string, []interface{}) {
	const columnsPerRow = 5

	args := make([]interface{}, 0, len(rows)*columnsPerRow)

	var query strings.Builder
	query.Grow(120 + len(rows)*14)
	query.WriteString(`INSERT INTO readings (ins_seq, source_id, measurement_type, value, timestamp_ms) VALUES `)

	for i, r := range rows {
		if i > 0 {
			query.WriteByte(',')
		}
		query.WriteString("(?,?,?,?,?)")
		args = append(args, s.seq.Add(1), r.SourceID, r.Type, r.Value, r.TimestampMs)
	}

	return query.String(), args
}

// History runs a single indexed range query ordered by timestamp ascending.
func (s *RelationalStore) History(ctx context.Context, sourceID int) ([]telemetry.Reading, error) {
	cutoff := s.now().Add(-s.retention).UnixMilli()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, measurement_type, value, timestamp_ms
		FROM readings
		WHERE source_id = ? AND timestamp_ms >= ?
		ORDER BY timestamp_ms ASC, ins_seq ASC
	`, sourceID, cutoff)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	defer rows.Close()

	var history []telemetry.Reading
	for rows.Next() {
		var r telemetry.Reading
		if err := rows.Scan(&r.SourceID, &r.Type, &r.Value, &r.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		history = append(history, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}

	if len(history) == 0 {
		return nil, errors.NewUnknownSource(sourceID)
	}

	return history, nil
}

// Latest distinguishes an unknown source from a known source with no reading
// of the requested type via an existence check, then fetches one row.
func (s *RelationalStore) Latest(ctx context.Context, sourceID int, measurementType string) (*telemetry.Reading, error) {
	cutoff := s.now().Add(-s.retention).UnixMilli()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM readings WHERE source_id = ? AND timestamp_ms >= ?
	`, sourceID, cutoff).Scan(&count)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	if count == 0 {
		return nil, errors.NewUnknownSource(sourceID)
	}

	query := `
		SELECT source_id, measurement_type, value, timestamp_ms
		FROM readings
		WHERE source_id = ? AND timestamp_ms >= ?
	`
	args := []interface{}{sourceID, cutoff}
	if measurementType != "" {
		query += ` AND measurement_type = ?`
		args = append(args, measurementType)
	}
	query += ` ORDER BY timestamp_ms DESC, ins_seq DESC LIMIT 1`

	var r telemetry.Reading
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&r.SourceID, &r.Type, &r.Value, &r.TimestampMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}

	return &r, nil
}

// SaveDeployment upserts the deployment row for the buoy.
func (s *RelationalStore) SaveDeployment(ctx context.Context, dep *telemetry.Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deployments (buoy_id, lat, lon, allowed_radius_m, deployed_at_ms)
		VALUES (?, ?, ?, ?, ?)
	`, dep.BuoyID, dep.Lat, dep.Lon, dep.AllowedRadiusMeters, dep.DeployedAtMs)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Deployment fetches the deployment row for the buoy.
func (s *RelationalStore) Deployment(ctx context.Context, buoyID int) (*telemetry.Deployment, bool, error) {
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

// Close closes the database.
func (s *RelationalStore) Close() error {
	return s.db.Close()
}
