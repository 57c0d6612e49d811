// internal/domain/attendance/repository.go
package attendance

import (
	"context"
	"database/sql"
	"time"
)

// RunRecord is the journal row written once per run.
type RunRecord struct {
	ID           int64
	RunID        string
	Outcome      Outcome
	Stage        Stage
	InstrumentID sql.NullString
	Message      string
	StartedAt    time.Time
	FinishedAt   time.Time
	CreatedAt    time.Time
}

// NewRunRecord flattens an event into a journal row.
func NewRunRecord(ev Event) *RunRecord {
	rec := &RunRecord{
		RunID:      ev.Result.RunID,
		Outcome:    ev.Result.Outcome,
		Stage:      ev.Result.Stage,
		Message:    ev.Message,
		StartedAt:  ev.Result.StartedAt,
		FinishedAt: ev.Result.FinishedAt,
	}
	if ev.Result.Instrument != nil {
		rec.InstrumentID = sql.NullString{String: ev.Result.Instrument.ID, Valid: true}
	}
	return rec
}

// Journal appends run outcomes. It is write-only from the bot's point of view.
type Journal interface {
	Record(ctx context.Context, rec *RunRecord) error
}
