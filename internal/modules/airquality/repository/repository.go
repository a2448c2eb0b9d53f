package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"airquality-server/internal/modules/airquality/types"
)

//go:embed sql/delete-snapshot-readings.sql
var deleteSnapshotReadingsSQL string

//go:embed sql/delete-snapshot.sql
var deleteSnapshotSQL string

//go:embed sql/insert-snapshot.sql
var insertSnapshotSQL string

//go:embed sql/insert-snapshot-reading.sql
var insertSnapshotReadingSQL string

//go:embed sql/get-snapshot.sql
var getSnapshotSQL string

//go:embed sql/get-snapshot-readings.sql
var getSnapshotReadingsSQL string

//go:embed sql/insert-load.sql
var insertLoadSQL string

//go:embed sql/get-recent-loads.sql
var getRecentLoadsSQL string

// ErrNoSnapshot is returned by LoadSnapshot when nothing is stored for the
// source.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotRepository persists the last successful load of each source and a
// history of load attempts.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, ds *types.Dataset) error
	LoadSnapshot(ctx context.Context, source string) (*types.Dataset, error)
	DeleteSnapshot(ctx context.Context, source string) error
	RecordLoad(ctx context.Context, rec types.LoadRecord) error
	RecentLoads(ctx context.Context, limit int) ([]types.LoadRecord, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) SnapshotRepository {
	return &repositoryImpl{db: db}
}

// SaveSnapshot replaces the stored snapshot of ds.Source.
func (r *repositoryImpl) SaveSnapshot(ctx context.Context, ds *types.Dataset) error {
	if ds == nil {
		return errors.New("save snapshot: nil dataset")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback snapshot tx", "error", err)
		}
	}()

	if err := deleteSnapshot(ctx, tx, ds.Source); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx, insertSnapshotSQL,
		ds.Source, ds.HasHour, ds.LoadedAt.UTC().Format(time.RFC3339Nano), len(ds.Readings))
	if err != nil {
		return fmt.Errorf("save snapshot: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save snapshot: last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSnapshotReadingSQL)
	if err != nil {
		return fmt.Errorf("save snapshot: prepare: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Error("close snapshot insert stmt", "error", err)
		}
	}()

	for i, rd := range ds.Readings {
		_, err := stmt.ExecContext(ctx,
			id, i, rd.Station, rd.Year, rd.Month, rd.Day, rd.Hour,
			rd.Timestamp.UTC().Format(time.RFC3339Nano),
			nullable(rd.PM25), nullable(rd.PM10), nullable(rd.SO2), nullable(rd.NO2),
			nullable(rd.O3), nullable(rd.CO), nullable(rd.TEMP), nullable(rd.PRES),
			nullable(rd.DEWP), nullable(rd.RAIN), nullable(rd.WSPM),
		)
		if err != nil {
			return fmt.Errorf("save snapshot: insert reading %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored dataset of source or ErrNoSnapshot.
func (r *repositoryImpl) LoadSnapshot(ctx context.Context, source string) (*types.Dataset, error) {
	var (
		id       int64
		hasHour  bool
		loadedAt string
		rowCount int
	)
	err := r.db.QueryRowContext(ctx, getSnapshotSQL, source).Scan(&id, &hasHour, &loadedAt, &rowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", source, err)
	}

	ts, err := parseTime(loadedAt)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", source, err)
	}

	rows, err := r.db.QueryContext(ctx, getSnapshotReadingsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: readings: %w", source, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close snapshot rows", "error", err)
		}
	}()

	readings, err := scanReadings(rows, rowCount)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", source, err)
	}
	if len(readings) != rowCount {
		return nil, fmt.Errorf("load snapshot %q: got %d readings, header says %d", source, len(readings), rowCount)
	}

	return &types.Dataset{
		Source:   source,
		HasHour:  hasHour,
		LoadedAt: ts,
		Readings: readings,
	}, nil
}

func (r *repositoryImpl) DeleteSnapshot(ctx context.Context, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete snapshot: begin: %w", err)
	}
	if err := deleteSnapshot(ctx, tx, source); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return tx.Commit()
}

func deleteSnapshot(ctx context.Context, tx *sql.Tx, source string) error {
	if _, err := tx.ExecContext(ctx, deleteSnapshotReadingsSQL, source); err != nil {
		return fmt.Errorf("delete readings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteSnapshotSQL, source); err != nil {
		return fmt.Errorf("delete header: %w", err)
	}
	return nil
}

func (r *repositoryImpl) RecordLoad(ctx context.Context, rec types.LoadRecord) error {
	var errText any
	if rec.Error != "" {
		errText = rec.Error
	}
	loadedAt := rec.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertLoadSQL,
		rec.Source, rec.Origin, rec.Rows, errText, rec.DurationMS,
		loadedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record load: %w", err)
	}
	return nil
}

// RecentLoads returns up to limit load records, newest first.
func (r *repositoryImpl) RecentLoads(ctx context.Context, limit int) ([]types.LoadRecord, error) {
	rows, err := r.db.QueryContext(ctx, getRecentLoadsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close load log rows", "error", err)
		}
	}()

	out := []types.LoadRecord{}
	for rows.Next() {
		var (
			rec      types.LoadRecord
			errText  sql.NullString
			loadedAt string
		)
		if err := rows.Scan(&rec.Source, &rec.Origin, &rec.Rows, &errText, &rec.DurationMS, &loadedAt); err != nil {
			return nil, err
		}
		rec.Error = errText.String
		if rec.LoadedAt, err = parseTime(loadedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanReadings(rows *sql.Rows, sizeHint int) ([]types.Reading, error) {
	out := make([]types.Reading, 0, sizeHint)
	for rows.Next() {
		var (
			rd types.Reading
			ts string
			m  [11]sql.NullFloat64
		)
		if err := rows.Scan(&rd.Station, &rd.Year, &rd.Month, &rd.Day, &rd.Hour, &ts,
			&m[0], &m[1], &m[2], &m[3], &m[4], &m[5], &m[6], &m[7], &m[8], &m[9], &m[10]); err != nil {
			return nil, err
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		rd.Timestamp = t
		rd.PM25, rd.PM10, rd.SO2, rd.NO2 = orNaN(m[0]), orNaN(m[1]), orNaN(m[2]), orNaN(m[3])
		rd.O3, rd.CO, rd.TEMP, rd.PRES = orNaN(m[4]), orNaN(m[5]), orNaN(m[6]), orNaN(m[7])
		rd.DEWP, rd.RAIN, rd.WSPM = orNaN(m[8]), orNaN(m[9]), orNaN(m[10])
		out = append(out, rd)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", s, err, err2)
		}
	}
	return t.UTC(), nil
}

// nullable stores missing measurements as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
