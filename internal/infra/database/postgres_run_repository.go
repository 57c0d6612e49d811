package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"attendance_bot/internal/domain/attendance"
)

const runsTable = "attendance_runs"

const createRunsTable = `CREATE TABLE IF NOT EXISTS attendance_runs (
    id            BIGSERIAL PRIMARY KEY,
    run_id        UUID        NOT NULL UNIQUE,
    outcome       TEXT        NOT NULL,
    stage         TEXT        NOT NULL,
    instrument_id TEXT,
    message       TEXT        NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ErrDuplicateRun is returned when a run ID was already recorded.
var ErrDuplicateRun = errors.New("attendance run already recorded")

// PostgresRunRepository appends run outcomes to the attendance_runs table.
type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (r *PostgresRunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return errors.Wrapf(err, "error creating %s table", runsTable)
	}
	return nil
}

// Record inserts rec and fills in its ID and CreatedAt.
func (r *PostgresRunRepository) Record(ctx context.Context, rec *attendance.RunRecord) error {
	query := `INSERT INTO attendance_runs (run_id, outcome, stage, instrument_id, message, started_at, finished_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		rec.RunID, rec.Outcome, rec.Stage, rec.InstrumentID, rec.Message, rec.StartedAt, rec.FinishedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateRun
		}
		return errors.Wrap(err, "error recording attendance run")
	}
	return nil
}
