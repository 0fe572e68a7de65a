package memory

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talenthq/arena/internal/domain"
)

func cloneAssessment(a *domain.Assessment) *domain.Assessment {
	out := *a
	out.Questions = make([]domain.Question, len(a.Questions))
	for i, q := range a.Questions {
		out.Questions[i] = q
		out.Questions[i].Options = slices.Clone(q.Options)
		out.Questions[i].CorrectAnswer = slices.Clone(q.CorrectAnswer)
	}
	out.AllowedTakers = slices.Clone(a.AllowedTakers)
	return &out
}

func cloneAttempt(at *domain.Attempt) *domain.Attempt {
	out := *at
	out.Answers = make([]domain.AnswerRecord, len(at.Answers))
	for i, rec := range at.Answers {
		out.Answers[i] = rec
		out.Answers[i].Answer = slices.Clone(rec.Answer)
	}
	if at.SubmittedAt != nil {
		t := *at.SubmittedAt
		out.SubmittedAt = &t
	}
	return &out
}

func cloneEvent(e *domain.Event) *domain.Event {
	out := *e
	out.Rounds = make([]domain.Round, len(e.Rounds))
	for i, r := range e.Rounds {
		out.Rounds[i] = r
		out.Rounds[i].StartsAt = cloneTimePtr(r.StartsAt)
		out.Rounds[i].EndsAt = cloneTimePtr(r.EndsAt)
	}
	out.Quiz = make([]domain.QuizQuestion, len(e.Quiz))
	for i, q := range e.Quiz {
		out.Quiz[i] = q
		out.Quiz[i].Options = slices.Clone(q.Options)
	}
	out.RegistrationDeadline = cloneTimePtr(e.RegistrationDeadline)
	out.Participants = make([]*domain.Participant, len(e.Participants))
	for i, p := range e.Participants {
		out.Participants[i] = cloneParticipant(p)
	}
	return &out
}

func cloneParticipant(p *domain.Participant) *domain.Participant {
	out := *p
	out.Rounds = make(map[int]*domain.RoundResult, len(p.Rounds))
	for n, r := range p.Rounds {
		rr := *r
		rr.Score = cloneDecimalPtr(r.Score)
		rr.EvaluatedAt = cloneTimePtr(r.EvaluatedAt)
		out.Rounds[n] = &rr
	}
	out.Score = cloneDecimalPtr(p.Score)
	if p.Quiz != nil {
		q := *p.Quiz
		q.Answers = make(map[string]int, len(p.Quiz.Answers))
		for k, v := range p.Quiz.Answers {
			q.Answers[k] = v
		}
		out.Quiz = &q
	}
	return &out
}

func cloneDecimalPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
