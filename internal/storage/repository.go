package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertReadingSQL = `INSERT INTO metric_readings (
        device,
        sampled_at,
        metric
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (device, sampled_at) DO UPDATE
    SET metric = EXCLUDED.metric;`

	listReadingsBetweenSQL = `SELECT
        device,
        sampled_at,
        metric,
        created_at
    FROM metric_readings
    WHERE device = $1
      AND sampled_at >= $2
      AND sampled_at < $3
    ORDER BY sampled_at;`

	insertSubmissionSQL = `INSERT INTO submissions (
        device,
        submitted_at,
        kind,
        success,
        signature,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, device, submitted_at, kind, success, signature, reason, created_at;`

	listRecentSubmissionsSQL = `SELECT
        id,
        device,
        submitted_at,
        kind,
        success,
        signature,
        reason,
        created_at
    FROM submissions
    WHERE device = $1
    ORDER BY submitted_at DESC
    LIMIT $2;`

	countReadingsSQL = `SELECT COUNT(*) FROM metric_readings WHERE device = $1;`
)

// ReadingStore persists smoothed-metric observations.
type ReadingStore interface {
	UpsertReading(ctx context.Context, reading MetricReading) error
	ListReadingsBetween(ctx context.Context, device string, from, to time.Time) ([]MetricReading, error)
}

// SubmissionStore persists transaction submission outcomes.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, record SubmissionRecord) (SubmissionRecord, error)
	ListRecentSubmissions(ctx context.Context, device string, limit int) ([]SubmissionRecord, error)
}

// Store wraps a pgx pool with telemetry persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store around an established pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertReading inserts or updates one metric observation.
func (s *Store) UpsertReading(ctx context.Context, reading MetricReading) error {
	if s.pool == nil {
		return ErrNotConfigured
	}

	_, err := s.pool.Exec(ctx, upsertReadingSQL, reading.Device, reading.At, reading.Metric)
	if err != nil {
		return fmt.Errorf("upsert reading: %w", err)
	}
	return nil
}

// ListReadingsBetween returns observations from [from, to) in order.
func (s *Store) ListReadingsBetween(ctx context.Context, device string, from, to time.Time) ([]MetricReading, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listReadingsBetweenSQL, device, from, to)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var readings []MetricReading
	for rows.Next() {
		var r MetricReading
		if err := rows.Scan(&r.Device, &r.At, &r.Metric, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// InsertSubmission records one submission attempt.
func (s *Store) InsertSubmission(ctx context.Context, record SubmissionRecord) (SubmissionRecord, error) {
	if s.pool == nil {
		return SubmissionRecord{}, ErrNotConfigured
	}

	row := s.pool.QueryRow(ctx, insertSubmissionSQL,
		record.Device, record.At, record.Kind, record.Success, record.Signature, record.Reason)

	var out SubmissionRecord
	if err := row.Scan(&out.ID, &out.Device, &out.At, &out.Kind, &out.Success, &out.Signature, &out.Reason, &out.CreatedAt); err != nil {
		return SubmissionRecord{}, fmt.Errorf("insert submission: %w", err)
	}
	return out, nil
}

// ListRecentSubmissions returns the latest submission attempts.
func (s *Store) ListRecentSubmissions(ctx context.Context, device string, limit int) ([]SubmissionRecord, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listRecentSubmissionsSQL, device, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var records []SubmissionRecord
	for rows.Next() {
		var r SubmissionRecord
		if err := rows.Scan(&r.ID, &r.Device, &r.At, &r.Kind, &r.Success, &r.Signature, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountReadings returns the number of stored observations for a device.
func (s *Store) CountReadings(ctx context.Context, device string) (int64, error) {
	if s.pool == nil {
		return 0, ErrNotConfigured
	}

	var count int64
	if err := s.pool.QueryRow(ctx, countReadingsSQL, device).Scan(&count); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return count, nil
}

var _ ReadingStore = (*Store)(nil)
var _ SubmissionStore = (*Store)(nil)
