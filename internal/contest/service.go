// Package contest implements participant registration, round-to-round
// progression, and embedded quiz submission for multi-round events.
package contest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
	"github.com/talenthq/arena/internal/event"
	"github.com/talenthq/arena/internal/grading"
	"github.com/talenthq/arena/internal/leaderboard"
	"github.com/talenthq/arena/internal/store"
)

type Config struct {
	Events   store.EventStore
	EventBus *event.Bus
	Notifier store.Notifier
	Audit    store.Audit
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	events   store.EventStore
	eb       *event.Bus
	notifier store.Notifier
	audit    store.Audit
	now      func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		events:   c.Events,
		eb:       c.EventBus,
		notifier: c.Notifier,
		audit:    c.Audit,
		now:      c.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type RegisterParticipantRequest struct {
	EventID     string
	UserID      string
	DisplayName string
}

// RegisterParticipant creates the participant's progress record: round 1,
// every defined round pre-seeded as pending. Duplicate registration fails.
func (s *Service) RegisterParticipant(ctx context.Context, req RegisterParticipantRequest) (*domain.Participant, error) {
	if req.EventID == "" || req.UserID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("event id and user id are required"))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate participant ID: %w", err)
	}

	var registered *domain.Participant
	_, err = s.events.UpdateEvent(ctx, req.EventID, func(e *domain.Event) error {
		if e.RegistrationDeadline != nil && s.now().After(*e.RegistrationDeadline) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("registration closed at %s", e.RegistrationDeadline.Format(time.RFC3339)))
		}

		if e.ParticipantByUser(req.UserID) != nil {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("user is already registered: %s", req.UserID))
		}

		now := s.now()
		p := &domain.Participant{
			ParticipantID:    id.String(),
			UserID:           req.UserID,
			DisplayName:      req.DisplayName,
			CurrentRound:     1,
			Rounds:           make(map[int]*domain.RoundResult, len(e.Rounds)),
			SubmissionStatus: domain.SubmissionNotSubmitted,
			RegisteredAt:     now,
			LastUpdated:      now,
		}
		for _, r := range e.Rounds {
			p.Rounds[r.RoundNumber] = &domain.RoundResult{Status: domain.RoundPending}
		}

		e.Participants = append(e.Participants, p)
		registered = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "participant.register", req.UserID, req.EventID)
	s.notify(ctx, store.Notification{
		RecipientID: req.UserID,
		Title:       "Registration confirmed",
		Message:     fmt.Sprintf("You are registered for event %s.", req.EventID),
	})

	return registered, nil
}

type EvaluateRoundRequest struct {
	EventID       string
	ParticipantID string
	RoundNumber   int
	// Score is optional: feedback-only evaluations leave the participant's
	// prior aggregate score untouched.
	Score       *decimal.Decimal
	Feedback    string
	Status      domain.RoundState
	EvaluatorID string
}

// EvaluateRound records the outcome of one round for one participant and
// drives the progression state machine: qualification advances the active
// round when a later round exists, ends the journey as reviewed otherwise;
// disqualification rejects and freezes the participant.
func (s *Service) EvaluateRound(ctx context.Context, req EvaluateRoundRequest) (*domain.Participant, error) {
	switch req.Status {
	case domain.RoundPending, domain.RoundQualified, domain.RoundDisqualified:
	default:
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown round status: %q", req.Status))
	}

	var evaluated *domain.Participant
	_, err := s.events.UpdateEvent(ctx, req.EventID, func(e *domain.Event) error {
		if _, ok := e.RoundByNumber(req.RoundNumber); !ok {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("round not defined: %d", req.RoundNumber))
		}

		p := e.ParticipantByID(req.ParticipantID)
		if p == nil {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("participant not found: %s", req.ParticipantID))
		}

		now := s.now()
		rr := p.RoundResultFor(req.RoundNumber)
		rr.Status = req.Status
		rr.Feedback = req.Feedback
		rr.EvaluatedAt = &now
		if req.Score != nil {
			v := *req.Score
			rr.Score = &v
			p.Score = &v
		}

		switch req.Status {
		case domain.RoundQualified:
			// Progression only follows the participant's active round;
			// re-grading an earlier round records the result without
			// moving them.
			if req.RoundNumber == p.CurrentRound {
				if next, ok := e.NextRound(req.RoundNumber); ok {
					p.CurrentRound = next.RoundNumber
					p.SubmissionStatus = domain.SubmissionNotSubmitted
				} else {
					p.SubmissionStatus = domain.SubmissionReviewed
				}
			}
		case domain.RoundDisqualified:
			p.SubmissionStatus = domain.SubmissionRejected
		}

		p.LastUpdated = now
		evaluated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventRoundEvaluated{
			EventID:     req.EventID,
			Participant: *evaluated,
			RoundNumber: req.RoundNumber,
		})
	}
	s.recordAudit(ctx, "round.evaluate", req.EvaluatorID,
		fmt.Sprintf("event=%s participant=%s round=%d status=%s", req.EventID, req.ParticipantID, req.RoundNumber, req.Status))
	s.notify(ctx, store.Notification{
		RecipientID: evaluated.UserID,
		Title:       fmt.Sprintf("Round %d evaluated", req.RoundNumber),
		Message:     req.Feedback,
	})

	return evaluated, nil
}

type SubmitQuizRequest struct {
	EventID string
	UserID  string
	// Answers maps quiz question id to the selected option index.
	Answers map[string]int
}

// SubmitQuiz auto-grades the event's embedded quiz for the participant. The
// submission record is upserted per (event, candidate): resubmission
// replaces the previous run rather than duplicating it.
func (s *Service) SubmitQuiz(ctx context.Context, req SubmitQuizRequest) (*domain.Participant, error) {
	var submitted *domain.Participant
	_, err := s.events.UpdateEvent(ctx, req.EventID, func(e *domain.Event) error {
		if len(e.Quiz) == 0 {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("event has no embedded quiz: %s", req.EventID))
		}

		p := e.ParticipantByUser(req.UserID)
		if p == nil {
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("participant not registered: %s", req.UserID))
		}

		earned := decimal.Zero
		total := decimal.Zero
		for _, q := range e.Quiz {
			var selected *int
			if idx, ok := req.Answers[q.QuestionID]; ok {
				v := idx
				selected = &v
			}
			res := grading.GradeQuizOption(q, selected)
			earned = earned.Add(res.PointsEarned)
			total = total.Add(q.Marks)
		}

		now := s.now()
		p.Quiz = &domain.QuizSubmission{
			Answers:     req.Answers,
			Score:       earned,
			TotalMarks:  total,
			SubmittedAt: now,
		}
		score := earned
		p.Score = &score
		p.SubmissionStatus = domain.SubmissionSubmitted
		p.LastUpdated = now
		submitted = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventQuizSubmitted{
			EventID:     req.EventID,
			Participant: *submitted,
		})
	}
	s.recordAudit(ctx, "quiz.submit", req.UserID, req.EventID)

	return submitted, nil
}

type FinalizeWinnersRequest struct {
	EventID string
	// WinnerCount is how many top ranks are stamped as winners. Defaults
	// to 1; ties on the cut-off rank all win.
	WinnerCount int
	ActorID     string
}

// FinalizeWinners is the explicit finalization action: it stamps rank and
// isWinner on every scored participant from a fresh ranking. The leaderboard
// read path never writes these fields.
func (s *Service) FinalizeWinners(ctx context.Context, req FinalizeWinnersRequest) (*domain.Event, error) {
	winners := req.WinnerCount
	if winners <= 0 {
		winners = 1
	}

	e, err := s.events.UpdateEvent(ctx, req.EventID, func(e *domain.Event) error {
		entries := leaderboard.Rank(e.Participants)
		now := s.now()
		for _, entry := range entries {
			p := e.ParticipantByID(entry.ParticipantID)
			if p == nil {
				continue
			}
			p.Rank = entry.Rank
			p.IsWinner = entry.Rank <= winners
			p.LastUpdated = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventWinnersFinalized{EventID: req.EventID})
	}
	s.recordAudit(ctx, "event.finalize", req.ActorID, req.EventID)

	return e, nil
}

type GetParticipantRequest struct {
	EventID string
	UserID  string
}

func (s *Service) GetParticipant(ctx context.Context, req GetParticipantRequest) (*domain.Participant, error) {
	e, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	p := e.ParticipantByUser(req.UserID)
	if p == nil {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("participant not registered: %s", req.UserID))
	}
	return p, nil
}

func (s *Service) notify(ctx context.Context, n store.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.ErrorContext(ctx, "contest: notify failed", "recipient", n.RecipientID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, action, actorID, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, action, actorID, detail); err != nil {
		slog.ErrorContext(ctx, "contest: audit failed", "action", action, "error", err)
	}
}
