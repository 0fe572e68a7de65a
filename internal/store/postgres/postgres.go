// Package postgres persists the engine's aggregates as JSONB documents.
// Closure updates run inside a transaction with a row lock, which gives the
// per-document atomicity the engine requires without cross-document
// transactions.
package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
)

const codeUniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the document tables. The partial unique index is what
// enforces "at most one in-progress attempt per (assessment, candidate)"
// under concurrent starts.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS assessments (
	assessment_id TEXT PRIMARY KEY,
	doc           JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
	attempt_id    TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	candidate_id  TEXT NOT NULL,
	status        TEXT NOT NULL,
	doc           JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS attempts_assessment_status
	ON attempts (assessment_id, status);

CREATE UNIQUE INDEX IF NOT EXISTS attempts_one_in_progress
	ON attempts (assessment_id, candidate_id)
	WHERE status = 'in-progress';

CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	doc      JSONB NOT NULL
);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	return getDoc[domain.Assessment](ctx, s.db,
		`SELECT doc FROM assessments WHERE assessment_id = $1`, id, "assessment")
}

func (s *Store) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	const stmt = `
INSERT INTO assessments (assessment_id, doc) VALUES ($1, $2)
ON CONFLICT (assessment_id) DO UPDATE SET doc = EXCLUDED.doc;`

	_, err = s.db.Exec(ctx, stmt, a.AssessmentID, doc)
	return err
}

func (s *Store) UpdateAssessment(ctx context.Context, id string, fn func(*domain.Assessment) error) (*domain.Assessment, error) {
	return updateDoc(ctx, s.db, updateSpec[domain.Assessment]{
		selectStmt: `SELECT doc FROM assessments WHERE assessment_id = $1 FOR UPDATE`,
		updateStmt: `UPDATE assessments SET doc = $2 WHERE assessment_id = $1`,
		id:         id,
		kind:       "assessment",
	}, fn)
}

func (s *Store) CreateAttempt(ctx context.Context, at *domain.Attempt) error {
	doc, err := json.Marshal(at)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	const stmt = `
INSERT INTO attempts (attempt_id, assessment_id, candidate_id, status, doc)
VALUES ($1, $2, $3, $4, $5);`

	_, err = s.db.Exec(ctx, stmt, at.AttemptID, at.AssessmentID, at.CandidateID, string(at.Status), doc)

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("attempt already exists: assessment=%s candidate=%s", at.AssessmentID, at.CandidateID),
			errors.WithCause(err))
	}
	return err
}

func (s *Store) GetAttempt(ctx context.Context, id string) (*domain.Attempt, error) {
	return getDoc[domain.Attempt](ctx, s.db,
		`SELECT doc FROM attempts WHERE attempt_id = $1`, id, "attempt")
}

func (s *Store) FindInProgress(ctx context.Context, assessmentID, candidateID string) (*domain.Attempt, error) {
	const stmt = `
SELECT doc FROM attempts
WHERE assessment_id = $1 AND candidate_id = $2 AND status = 'in-progress';`

	var doc []byte
	err := s.db.QueryRow(ctx, stmt, assessmentID, candidateID).Scan(&doc)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no in-progress attempt: assessment=%s candidate=%s", assessmentID, candidateID))
	}
	if err != nil {
		return nil, err
	}

	var at domain.Attempt
	if err := json.Unmarshal(doc, &at); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return &at, nil
}

func (s *Store) UpdateAttempt(ctx context.Context, id string, fn func(*domain.Attempt) error) (updated *domain.Attempt, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	var doc []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM attempts WHERE attempt_id = $1 FOR UPDATE`, id).Scan(&doc)
	if stderrors.Is(err, pgx.ErrNoRows) {
		err = errors.New(errors.CodeNotFound, errors.WithMessagef("attempt not found: %s", id))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	var at domain.Attempt
	if err = json.Unmarshal(doc, &at); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}

	if err = fn(&at); err != nil {
		return nil, err
	}

	doc, err = json.Marshal(&at)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE attempts SET doc = $2, status = $3 WHERE attempt_id = $1`,
		id, doc, string(at.Status))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &at, nil
}

func (s *Store) ListSubmitted(ctx context.Context, assessmentID string) ([]domain.Attempt, error) {
	const stmt = `
SELECT doc FROM attempts
WHERE assessment_id = $1 AND status = 'submitted';`

	rows, err := s.db.Query(ctx, stmt, assessmentID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Attempt, error) {
		var doc []byte
		if err := r.Scan(&doc); err != nil {
			return domain.Attempt{}, err
		}
		var at domain.Attempt
		if err := json.Unmarshal(doc, &at); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
		}
		return at, nil
	})
}

func (s *Store) CountAttempts(ctx context.Context, assessmentID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID).Scan(&n)
	return n, err
}

func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return getDoc[domain.Event](ctx, s.db,
		`SELECT doc FROM events WHERE event_id = $1`, id, "event")
}

func (s *Store) SaveEvent(ctx context.Context, e *domain.Event) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	const stmt = `
INSERT INTO events (event_id, doc) VALUES ($1, $2)
ON CONFLICT (event_id) DO UPDATE SET doc = EXCLUDED.doc;`

	_, err = s.db.Exec(ctx, stmt, e.EventID, doc)
	return err
}

func (s *Store) UpdateEvent(ctx context.Context, id string, fn func(*domain.Event) error) (*domain.Event, error) {
	return updateDoc(ctx, s.db, updateSpec[domain.Event]{
		selectStmt: `SELECT doc FROM events WHERE event_id = $1 FOR UPDATE`,
		updateStmt: `UPDATE events SET doc = $2 WHERE event_id = $1`,
		id:         id,
		kind:       "event",
	}, fn)
}

func getDoc[T any](ctx context.Context, db *pgxpool.Pool, stmt, id, kind string) (*T, error) {
	var doc []byte
	err := db.QueryRow(ctx, stmt, id).Scan(&doc)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: %s", kind, id))
	}
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return &v, nil
}

type updateSpec[T any] struct {
	selectStmt string
	updateStmt string
	id         string
	kind       string
}

func updateDoc[T any](ctx context.Context, db *pgxpool.Pool, spec updateSpec[T], fn func(*T) error) (v *T, err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	var doc []byte
	err = tx.QueryRow(ctx, spec.selectStmt, spec.id).Scan(&doc)
	if stderrors.Is(err, pgx.ErrNoRows) {
		err = errors.New(errors.CodeNotFound, errors.WithMessagef("%s not found: %s", spec.kind, spec.id))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	v = new(T)
	if err = json.Unmarshal(doc, v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", spec.kind, err)
	}

	if err = fn(v); err != nil {
		return nil, err
	}

	doc, err = json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", spec.kind, err)
	}

	if _, err = tx.Exec(ctx, spec.updateStmt, spec.id, doc); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return v, nil
}
