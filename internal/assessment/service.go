// Package assessment implements the attempt state machine for timed
// assessments: start, answer saving, submission, and proctoring-driven
// termination. All mutation goes through the store's closure updates so a
// concurrent submit and auto-submit on the same attempt cannot both score it.
package assessment

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
	"github.com/talenthq/arena/internal/proctor"
	"github.com/talenthq/arena/internal/store"
)

// submitGrace is the slack granted past the attempt deadline before a
// save or submit is treated as expired, covering client clock skew.
const submitGrace = 30 * time.Second

type Config struct {
	Assessments store.AssessmentStore
	Attempts    store.AttemptStore
	EventBus    *event.Bus
	Notifier    store.Notifier
	Audit       store.Audit
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	assessments store.AssessmentStore
	attempts    store.AttemptStore
	eb          *event.Bus
	notifier    store.Notifier
	audit       store.Audit
	now         func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		assessments: c.Assessments,
		attempts:    c.Attempts,
		eb:          c.EventBus,
		notifier:    c.Notifier,
		audit:       c.Audit,
		now:         c.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type StartAttemptRequest struct {
	AssessmentID string
	CandidateID  string
}

// StartAttempt creates a new in-progress attempt, or returns the existing
// one unchanged when the candidate already has an attempt in flight.
func (s *Service) StartAttempt(ctx context.Context, req StartAttemptRequest) (*domain.Attempt, error) {
	if req.AssessmentID == "" || req.CandidateID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("assessment id and candidate id are required"))
	}

	a, err := s.assessments.GetAssessment(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}

	if !a.IsActive {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("assessment is not accepting attempts: %s", a.AssessmentID))
	}

	if !a.AllowsTaker(req.CandidateID) {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("candidate is not authorized to take this assessment"))
	}

	// Idempotent resume: at most one in-progress attempt per pair.
	if existing, err := s.attempts.FindInProgress(ctx, req.AssessmentID, req.CandidateID); err == nil {
		return existing, nil
	} else if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate attempt ID: %w", err)
	}

	at := &domain.Attempt{
		AttemptID:    id.String(),
		AssessmentID: req.AssessmentID,
		CandidateID:  req.CandidateID,
		StartedAt:    s.now(),
		Status:       domain.AttemptInProgress,
	}

	if err := s.attempts.CreateAttempt(ctx, at); err != nil {
		// Lost a concurrent start for the same pair; resume the attempt
		// that won.
		if errors.Is(err, errors.CodeAlreadyExists) {
			return s.attempts.FindInProgress(ctx, req.AssessmentID, req.CandidateID)
		}
		return nil, err
	}

	s.refreshAssessmentStats(ctx, req.AssessmentID)
	s.recordAudit(ctx, "attempt.start", req.CandidateID, at.AttemptID)

	return at, nil
}

type SaveAnswerRequest struct {
	AttemptID   string
	CandidateID string
	QuestionID  string
	Answer      []string
	// TimeTaken on this question, in seconds.
	TimeTaken int
}

// SaveAnswer upserts one answer on an in-progress attempt. A save arriving
// past the attempt deadline expires the attempt instead, grading whatever
// was already saved.
func (s *Service) SaveAnswer(ctx context.Context, req SaveAnswerRequest) (*domain.Attempt, error) {
	if req.AttemptID == "" || req.QuestionID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("attempt id and question id are required"))
	}

	a, err := s.assessmentForAttempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}

	if _, ok := a.QuestionByID(req.QuestionID); !ok {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("question does not belong to this assessment: %s", req.QuestionID))
	}

	var expired bool
	at, err := s.attempts.UpdateAttempt(ctx, req.AttemptID, func(at *domain.Attempt) error {
		if err := s.checkOwner(at, req.CandidateID); err != nil {
			return err
		}
		if at.Terminal() {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("attempt is no longer in progress: %s", at.Status))
		}
		if s.pastDeadline(a, at) {
			s.finalize(at, a, domain.AttemptExpired, "")
			expired = true
			return nil
		}

		at.UpsertAnswer(domain.AnswerRecord{
			QuestionID: req.QuestionID,
			Answer:     req.Answer,
			TimeTaken:  req.TimeTaken,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.afterTerminal(ctx, at, domain.EventAttemptExpired{Attempt: *at})
		return at, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("attempt expired before the answer was saved"))
	}

	return at, nil
}

type SubmitAttemptRequest struct {
	AttemptID   string
	CandidateID string
}

// SubmitAttempt grades every saved answer and transitions the attempt to
// its terminal submitted state. Effective at most once per attempt.
func (s *Service) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (*domain.Attempt, error) {
	a, err := s.assessmentForAttempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}

	var expired bool
	at, err := s.attempts.UpdateAttempt(ctx, req.AttemptID, func(at *domain.Attempt) error {
		if err := s.checkOwner(at, req.CandidateID); err != nil {
			return err
		}
		if at.Terminal() {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("attempt already submitted: %s", at.Status))
		}

		status := domain.AttemptSubmitted
		if s.pastDeadline(a, at) {
			status = domain.AttemptExpired
			expired = true
		}
		s.finalize(at, a, status, "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.afterTerminal(ctx, at, domain.EventAttemptExpired{Attempt: *at})
		return at, nil
	}

	s.afterTerminal(ctx, at, domain.EventAttemptSubmitted{Attempt: *at})
	s.notify(ctx, store.Notification{
		RecipientID: at.CandidateID,
		Title:       fmt.Sprintf("Assessment submitted: %s", a.Title),
		Message:     fmt.Sprintf("You scored %s%% (%s).", at.Percentage.StringFixed(2), passLabel(at.Passed)),
	})
	s.recordAudit(ctx, "attempt.submit", req.CandidateID, at.AttemptID)

	return at, nil
}

type ReportTabSwitchRequest struct {
	AttemptID   string
	CandidateID string
}

type ReportTabSwitchResponse struct {
	Attempt *domain.Attempt
	// Warning signals the client to show a final warning; advisory only.
	Warning bool
}

// ReportTabSwitch records one proctoring violation. Crossing the configured
// limit flags the attempt and auto-submits whatever answers are saved.
// Reports against terminal attempts are no-ops.
func (s *Service) ReportTabSwitch(ctx context.Context, req ReportTabSwitchRequest) (*ReportTabSwitchResponse, error) {
	a, err := s.assessmentForAttempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}

	var (
		warning bool
		flagged bool
	)
	at, err := s.attempts.UpdateAttempt(ctx, req.AttemptID, func(at *domain.Attempt) error {
		if err := s.checkOwner(at, req.CandidateID); err != nil {
			return err
		}
		if at.Terminal() {
			// Already submitted or flagged: never re-score or re-flag.
			return nil
		}

		d := proctor.Monitor{Limit: a.TabSwitchLimit}.Report(at.TabSwitches)
		at.TabSwitches = d.TabSwitches
		warning = d.Warning

		if d.Exceeded {
			s.finalize(at, a, domain.AttemptFlagged, d.Reason)
			flagged = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if flagged {
		s.afterTerminal(ctx, at, domain.EventAttemptFlagged{Attempt: *at})
		s.notify(ctx, store.Notification{
			RecipientID: at.CandidateID,
			Title:       "Assessment flagged",
			Message:     at.FlagReason,
		})
		s.recordAudit(ctx, "attempt.flag", req.CandidateID, at.FlagReason)
	}

	return &ReportTabSwitchResponse{Attempt: at, Warning: warning}, nil
}

type GetAttemptRequest struct {
	AttemptID   string
	CandidateID string
}

func (s *Service) GetAttempt(ctx context.Context, req GetAttemptRequest) (*domain.Attempt, error) {
	at, err := s.attempts.GetAttempt(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(at, req.CandidateID); err != nil {
		return nil, err
	}
	return at, nil
}

// finalize grades every question of the assessment against the saved
// answers and stamps the terminal state. Unanswered questions score zero
// but count toward the total; malformed or unknown questions count toward
// neither side.
func (s *Service) finalize(at *domain.Attempt, a *domain.Assessment, status domain.AttemptStatus, flagReason string) {
	known := make(map[string]struct{}, len(a.Questions))

	earned := decimal.Zero
	total := decimal.Zero

	for _, q := range a.Questions {
		known[q.QuestionID] = struct{}{}

		var submitted []string
		if rec := at.AnswerFor(q.QuestionID); rec != nil {
			submitted = rec.Answer
		}

		res := grading.Grade(q, submitted)
		if res.Skipped {
			slog.Warn("assessment: skipping ungradable question",
				"assessment", a.AssessmentID, "question", q.QuestionID, "type", q.Type)
			continue
		}

		if rec := at.AnswerFor(q.QuestionID); rec != nil {
			rec.IsCorrect = res.IsCorrect
			rec.PointsEarned = res.PointsEarned
		}

		earned = earned.Add(res.PointsEarned)
		total = total.Add(q.Weight())
	}

	for i := range at.Answers {
		if _, ok := known[at.Answers[i].QuestionID]; !ok {
			slog.Warn("assessment: saved answer references unknown question",
				"attempt", at.AttemptID, "question", at.Answers[i].QuestionID)
		}
	}

	at.TotalScore = earned
	if total.IsPositive() {
		at.Percentage = earned.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		at.Percentage = decimal.Zero
	}
	at.Passed = at.Percentage.GreaterThanOrEqual(a.PassingScore)

	now := s.now()
	at.SubmittedAt = &now
	at.TimeSpent = int(now.Sub(at.StartedAt) / time.Second)
	at.Status = status
	if status == domain.AttemptFlagged {
		at.Flagged = true
		at.FlagReason = flagReason
	}
}

// afterTerminal publishes the terminal event and refreshes the recomputed
// assessment counters.
func (s *Service) afterTerminal(ctx context.Context, at *domain.Attempt, e event.Event) {
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
	s.refreshAssessmentStats(ctx, at.AssessmentID)
}

// refreshAssessmentStats recomputes totalAttempts and averageScore from the
// authoritative attempt set rather than maintaining running counters.
func (s *Service) refreshAssessmentStats(ctx context.Context, assessmentID string) {
	count, err := s.attempts.CountAttempts(ctx, assessmentID)
	if err != nil {
		slog.ErrorContext(ctx, "assessment: count attempts failed", "assessment", assessmentID, "error", err)
		return
	}

	submitted, err := s.attempts.ListSubmitted(ctx, assessmentID)
	if err != nil {
		slog.ErrorContext(ctx, "assessment: list submitted attempts failed", "assessment", assessmentID, "error", err)
		return
	}

	avg := decimal.Zero
	if len(submitted) > 0 {
		sum := decimal.Zero
		for _, at := range submitted {
			sum = sum.Add(at.Percentage)
		}
		avg = sum.Div(decimal.NewFromInt(int64(len(submitted)))).Round(2)
	}

	_, err = s.assessments.UpdateAssessment(ctx, assessmentID, func(a *domain.Assessment) error {
		a.TotalAttempts = count
		a.AverageScore = avg
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "assessment: refresh stats failed", "assessment", assessmentID, "error", err)
	}
}

func (s *Service) assessmentForAttempt(ctx context.Context, attemptID string) (*domain.Assessment, error) {
	at, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return s.assessments.GetAssessment(ctx, at.AssessmentID)
}

func (s *Service) checkOwner(at *domain.Attempt, candidateID string) error {
	if candidateID != "" && at.CandidateID != candidateID {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("attempt belongs to another candidate"))
	}
	return nil
}

func (s *Service) pastDeadline(a *domain.Assessment, at *domain.Attempt) bool {
	if a.Duration <= 0 {
		return false
	}
	return s.now().After(a.Deadline(at.StartedAt).Add(submitGrace))
}

func (s *Service) notify(ctx context.Context, n store.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.ErrorContext(ctx, "assessment: notify failed", "recipient", n.RecipientID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, action, actorID, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, action, actorID, detail); err != nil {
		slog.ErrorContext(ctx, "assessment: audit failed", "action", action, "error", err)
	}
}

func passLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "not passed"
}
