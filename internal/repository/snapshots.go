package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/octobees/mailprobe/internal/metrics"
)

// ErrSnapshotNotFound indicates no metrics snapshot has been written yet.
var ErrSnapshotNotFound = errors.New("metrics snapshot not found")

const snapshotRowID = 1

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id         SMALLINT PRIMARY KEY,
	written_at TIMESTAMPTZ NOT NULL,
	payload    JSONB NOT NULL
)`

const upsertSnapshot = `
INSERT INTO metrics_snapshots (id, written_at, payload)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET written_at = EXCLUDED.written_at,
    payload    = EXCLUDED.payload`

const selectSnapshot = `SELECT written_at, payload FROM metrics_snapshots WHERE id = $1`

// pgxPool is the subset of *pgxpool.Pool the repository needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// PGXSnapshotRepository keeps the latest metrics snapshot in a single row.
type PGXSnapshotRepository struct {
	pool pgxPool
}

// NewPGXSnapshotRepository wires a pgx backed snapshot store.
func NewPGXSnapshotRepository(pool *pgxpool.Pool) *PGXSnapshotRepository {
	return &PGXSnapshotRepository{pool: pool}
}

var _ metrics.Store = (*PGXSnapshotRepository)(nil)

// EnsureSchema creates the snapshot table when missing.
func (r *PGXSnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createSnapshotsTable); err != nil {
		return errors.Wrap(err, "create metrics_snapshots")
	}
	return nil
}

// Save overwrites the stored snapshot with record.
func (r *PGXSnapshotRepository) Save(ctx context.Context, record metrics.Record) error {
	payload, err := json.Marshal(record.Metrics)
	if err != nil {
		return errors.Wrap(err, "marshal metrics snapshot")
	}
	if _, err := r.pool.Exec(ctx, upsertSnapshot, snapshotRowID, record.WrittenAt, payload); err != nil {
		return errors.Wrap(err, "upsert metrics snapshot")
	}
	return nil
}

// Load returns the stored snapshot or ErrSnapshotNotFound.
func (r *PGXSnapshotRepository) Load(ctx context.Context) (metrics.Record, error) {
	var (
		record    metrics.Record
		writtenAt time.Time
		payload   []byte
	)
	if err := r.pool.QueryRow(ctx, selectSnapshot, snapshotRowID).Scan(&writtenAt, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record, ErrSnapshotNotFound
		}
		return record, errors.Wrap(err, "select metrics snapshot")
	}
	if err := json.Unmarshal(payload, &record.Metrics); err != nil {
		return record, errors.Wrap(err, "decode metrics snapshot")
	}
	record.WrittenAt = writtenAt
	return record, nil
}
