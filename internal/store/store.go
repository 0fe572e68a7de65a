// Package store declares the persistence and side-channel interfaces the
// engine depends on. Implementations must provide per-document atomic
// writes; no cross-document transactions are assumed.
package store

import (
	"context"

	"github.com/talenthq/arena/internal/domain"
)

// AssessmentStore persists assessment definitions and their recomputed
// aggregate counters.
type AssessmentStore interface {
	GetAssessment(ctx context.Context, id string) (*domain.Assessment, error)
	SaveAssessment(ctx context.Context, a *domain.Assessment) error
	// UpdateAssessment applies fn to the stored assessment as one atomic
	// read-modify-write. When fn returns an error nothing is written.
	UpdateAssessment(ctx context.Context, id string, fn func(*domain.Assessment) error) (*domain.Assessment, error)
}

// AttemptStore persists attempts. An attempt document is owned exclusively
// by its (assessment, candidate) pair and mutated only through UpdateAttempt.
type AttemptStore interface {
	// CreateAttempt inserts a new attempt. Inserting a second in-progress
	// attempt for the same (assessment, candidate) pair fails with an
	// AlreadyExists error.
	CreateAttempt(ctx context.Context, at *domain.Attempt) error
	GetAttempt(ctx context.Context, id string) (*domain.Attempt, error)
	// FindInProgress returns the single in-progress attempt for the pair,
	// or a NotFound error when none exists.
	FindInProgress(ctx context.Context, assessmentID, candidateID string) (*domain.Attempt, error)
	// UpdateAttempt applies fn to the stored attempt as one atomic
	// read-modify-write. Concurrent updates to the same attempt serialize;
	// when fn returns an error nothing is written.
	UpdateAttempt(ctx context.Context, id string, fn func(*domain.Attempt) error) (*domain.Attempt, error)
	// ListSubmitted returns every attempt for the assessment with status
	// submitted, for recomputing the assessment's average score.
	ListSubmitted(ctx context.Context, assessmentID string) ([]domain.Attempt, error)
	CountAttempts(ctx context.Context, assessmentID string) (int, error)
}

// EventStore persists events as aggregate roots owning their participants.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	SaveEvent(ctx context.Context, e *domain.Event) error
	// UpdateEvent applies fn to the stored event as one atomic
	// read-modify-write. When fn returns an error nothing is written.
	UpdateEvent(ctx context.Context, id string, fn func(*domain.Event) error) (*domain.Event, error)
}

// Notification is an outbound best-effort message to one recipient.
type Notification struct {
	RecipientID string
	Title       string
	Message     string
}

// Notifier delivers notifications fire-and-forget; delivery failures must
// never roll back a scoring decision.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Audit is a best-effort append-only action log.
type Audit interface {
	Record(ctx context.Context, action, actorID, detail string) error
}
