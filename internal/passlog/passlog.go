// Package passlog records sync, verify and link passes in the pass_log table.
package passlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/db"
)

// Pass statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Entry is a row in pass_log.
//
//	pass_log (
//	  id           uuid PRIMARY KEY,
//	  pass         text NOT NULL,
//	  status       text NOT NULL,
//	  started_at   timestamptz NOT NULL,
//	  completed_at timestamptz,
//	  counts       jsonb,
//	  error        text
//	)
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	Pass        string         `json:"pass"`
	Status      string         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration is the elapsed time of a finished pass, or zero while running.
func (e Entry) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// Log provides read/write access to pass_log.
type Log struct {
	pool  db.Pool
	newID func() uuid.UUID
}

// New creates a Log backed by pool.
func New(pool db.Pool) *Log {
	return &Log{pool: pool, newID: uuid.New}
}

// Start records the beginning of a pass such as "sync:flood" and returns its run ID.
func (l *Log) Start(ctx context.Context, pass string) (uuid.UUID, error) {
	id := l.newID()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO pass_log (id, pass, status, started_at) VALUES ($1, $2, $3, now())`,
		id, pass, StatusRunning,
	)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "passlog: start %s", pass)
	}
	return id, nil
}

// Complete marks a pass finished and stores its report counts.
func (l *Log) Complete(ctx context.Context, id uuid.UUID, counts map[string]int) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "passlog: marshal counts")
	}
	_, err = l.pool.Exec(ctx,
		`UPDATE pass_log SET status = $1, completed_at = now(), counts = $2 WHERE id = $3`,
		StatusComplete, countsJSON, id,
	)
	return eris.Wrapf(err, "passlog: complete %s", id)
}

// Fail marks a pass failed with an error message.
func (l *Log) Fail(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE pass_log SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		StatusFailed, msg, id,
	)
	return eris.Wrapf(err, "passlog: fail %s", id)
}

// ListRecent returns up to limit entries, newest first.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, pass, status, started_at, completed_at, counts, error
		 FROM pass_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "passlog: list recent")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			errStr     *string
			countsJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Pass, &e.Status, &e.StartedAt, &e.CompletedAt, &countsJSON, &errStr); err != nil {
			return nil, eris.Wrap(err, "passlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &e.Counts); err != nil {
				return nil, eris.Wrapf(err, "passlog: decode counts of %s", e.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "passlog: iterate entries")
}

// Track runs fn between Start and Complete or Fail. fn returns the counts to
// store. Pass-log writes are bookkeeping: a failed Start or Complete is logged
// and never changes the outcome of fn.
func (l *Log) Track(ctx context.Context, pass string, fn func(ctx context.Context) (map[string]int, error)) error {
	log := zap.L().With(zap.String("component", "passlog"), zap.String("pass", pass))

	id, err := l.Start(ctx, pass)
	if err != nil {
		log.Warn("could not record pass start", zap.Error(err))
	}
	counts, runErr := fn(ctx)
	if id == uuid.Nil {
		return runErr
	}
	if runErr != nil {
		if err := l.Fail(ctx, id, runErr.Error()); err != nil {
			log.Warn("could not record pass failure", zap.Stringer("id", id), zap.Error(err))
		}
		return runErr
	}
	if err := l.Complete(ctx, id, counts); err != nil {
		log.Warn("could not record pass completion", zap.Stringer("id", id), zap.Error(err))
	}
	return nil
}
