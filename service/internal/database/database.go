// Package database persists study results in PostgreSQL.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/burgerlab/service/internal/models"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS study_data (
	id              BIGSERIAL PRIMARY KEY,
	participant_id  INTEGER     NOT NULL,
	adviser_mode    INTEGER     NOT NULL,
	steps_taken     INTEGER     NOT NULL,
	safety_violated INTEGER     NOT NULL,
	human_burgers   INTEGER     NOT NULL,
	robot_burgers   INTEGER     NOT NULL,
	session_id      UUID,
	aborted         BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS study_data_participant_idx ON study_data (participant_id);
CREATE UNIQUE INDEX IF NOT EXISTS study_data_session_idx ON study_data (session_id) WHERE session_id IS NOT NULL;
`

// Store is a connection pool bound to the study_data table.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool to dsn and checks connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logrus.WithField("host", cfg.ConnConfig.Host).Info("Connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureSchema creates the study_data table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const insertColumns = `
	INSERT INTO study_data
		(participant_id, adviser_mode, steps_taken, safety_violated, human_burgers, robot_burgers, session_id, aborted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// InsertStudyResult stores a client-reported result. It never replaces a
// row already stored for the same session.
func (s *Store) InsertStudyResult(ctx context.Context, r models.StudyResult) error {
	return s.writeResult(ctx, r, insertColumns+`
	ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO NOTHING`)
}

// SaveSessionResult stores the server's record of an ended session,
// replacing any client-reported row for it.
func (s *Store) SaveSessionResult(ctx context.Context, r models.StudyResult) error {
	return s.writeResult(ctx, r, insertColumns+`
	ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO UPDATE SET
		participant_id  = EXCLUDED.participant_id,
		adviser_mode    = EXCLUDED.adviser_mode,
		steps_taken     = EXCLUDED.steps_taken,
		safety_violated = EXCLUDED.safety_violated,
		human_burgers   = EXCLUDED.human_burgers,
		robot_burgers   = EXCLUDED.robot_burgers,
		aborted         = EXCLUDED.aborted`)
}

func (s *Store) writeResult(ctx context.Context, r models.StudyResult, query string) error {
	var sessionID any
	if r.SessionID != uuid.Nil {
		sessionID = r.SessionID
	}
	_, err := s.pool.Exec(ctx, query,
		r.ParticipantID, int64(r.AdviserMode), int64(r.StepsTaken), int64(r.SafetyViolated),
		int64(r.HumanBurgers), int64(r.RobotBurgers), sessionID, r.Aborted,
	)
	if err != nil {
		return fmt.Errorf("store study result for participant %d: %w", r.ParticipantID, err)
	}
	return nil
}

// ListStudyResults returns every stored result, oldest first.
func (s *Store) ListStudyResults(ctx context.Context) ([]models.StudyResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant_id, adviser_mode, steps_taken, safety_violated,
		       human_burgers, robot_burgers, session_id, aborted, created_at
		FROM study_data ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list study results: %w", err)
	}
	results, err := pgx.CollectRows(rows, scanStudyResult)
	if err != nil {
		return nil, fmt.Errorf("scan study results: %w", err)
	}
	return results, nil
}

func scanStudyResult(row pgx.CollectableRow) (models.StudyResult, error) {
	var (
		r                             models.StudyResult
		mode, steps, violated, hb, rb int64
		sessionID                     *[16]byte
	)
	if err := row.Scan(&r.ParticipantID, &mode, &steps, &violated, &hb, &rb, &sessionID, &r.Aborted, &r.CreatedAt); err != nil {
		return r, err
	}
	r.AdviserMode = uint32(mode)
	r.StepsTaken = uint32(steps)
	r.SafetyViolated = uint32(violated)
	r.HumanBurgers = uint32(hb)
	r.RobotBurgers = uint32(rb)
	if sessionID != nil {
		r.SessionID = *sessionID
	}
	return r, nil
}
