// Package memory is the in-memory store implementation, used by unit tests
// and single-node development runs.
package memory

import (
	"context"
	"sync"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
)

// Store keeps every aggregate in process memory. A single mutex serializes
// closure updates, which gives the same per-document atomicity the postgres
// implementation gets from row locks. Values are deep-copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu          sync.RWMutex
	assessments map[string]*domain.Assessment
	attempts    map[string]*domain.Attempt
	events      map[string]*domain.Event
}

func New() *Store {
	return &Store{
		assessments: make(map[string]*domain.Assessment),
		attempts:    make(map[string]*domain.Attempt),
		events:      make(map[string]*domain.Event),
	}
}

func (s *Store) GetAssessment(_ context.Context, id string) (*domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("assessment not found: %s", id))
	}
	return cloneAssessment(a), nil
}

func (s *Store) SaveAssessment(_ context.Context, a *domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assessments[a.AssessmentID] = cloneAssessment(a)
	return nil
}

func (s *Store) UpdateAssessment(_ context.Context, id string, fn func(*domain.Assessment) error) (*domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.assessments[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("assessment not found: %s", id))
	}

	next := cloneAssessment(cur)
	if err := fn(next); err != nil {
		return nil, err
	}

	s.assessments[id] = next
	return cloneAssessment(next), nil
}

func (s *Store) CreateAttempt(_ context.Context, at *domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[at.AttemptID]; ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("attempt already exists: %s", at.AttemptID))
	}

	// Same guarantee as the postgres partial unique index: at most one
	// in-progress attempt per (assessment, candidate).
	if at.Status == domain.AttemptInProgress {
		for _, cur := range s.attempts {
			if cur.AssessmentID == at.AssessmentID && cur.CandidateID == at.CandidateID && cur.Status == domain.AttemptInProgress {
				return errors.New(errors.CodeAlreadyExists,
					errors.WithMessagef("attempt already in progress: assessment=%s candidate=%s", at.AssessmentID, at.CandidateID))
			}
		}
	}

	s.attempts[at.AttemptID] = cloneAttempt(at)
	return nil
}

func (s *Store) GetAttempt(_ context.Context, id string) (*domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.attempts[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("attempt not found: %s", id))
	}
	return cloneAttempt(at), nil
}

func (s *Store) FindInProgress(_ context.Context, assessmentID, candidateID string) (*domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, at := range s.attempts {
		if at.AssessmentID == assessmentID && at.CandidateID == candidateID && at.Status == domain.AttemptInProgress {
			return cloneAttempt(at), nil
		}
	}
	return nil, errors.New(errors.CodeNotFound,
		errors.WithMessagef("no in-progress attempt: assessment=%s candidate=%s", assessmentID, candidateID))
}

func (s *Store) UpdateAttempt(_ context.Context, id string, fn func(*domain.Attempt) error) (*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.attempts[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("attempt not found: %s", id))
	}

	next := cloneAttempt(cur)
	if err := fn(next); err != nil {
		return nil, err
	}

	s.attempts[id] = next
	return cloneAttempt(next), nil
}

func (s *Store) ListSubmitted(_ context.Context, assessmentID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Attempt
	for _, at := range s.attempts {
		if at.AssessmentID == assessmentID && at.Status == domain.AttemptSubmitted {
			out = append(out, *cloneAttempt(at))
		}
	}
	return out, nil
}

func (s *Store) CountAttempts(_ context.Context, assessmentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, at := range s.attempts {
		if at.AssessmentID == assessmentID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("event not found: %s", id))
	}
	return cloneEvent(e), nil
}

func (s *Store) SaveEvent(_ context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[e.EventID] = cloneEvent(e)
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, id string, fn func(*domain.Event) error) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.events[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("event not found: %s", id))
	}

	next := cloneEvent(cur)
	if err := fn(next); err != nil {
		return nil, err
	}

	s.events[id] = next
	return cloneEvent(next), nil
}
