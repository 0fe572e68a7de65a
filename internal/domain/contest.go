package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round describes one stage of a multi-round Event.
type Round struct {
	RoundNumber   int    `json:"roundNumber"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	IsElimination bool   `json:"isElimination"`
	// Optional time window for the round.
	StartsAt *time.Time `json:"startsAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
}

// QuizQuestion is the event-embedded quiz variant: answers are selected by
// zero-based option index rather than by value.
type QuizQuestion struct {
	QuestionID string   `json:"questionId"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	// CorrectOption is a zero-based index into Options.
	CorrectOption int `json:"correctOption"`
	// Marks awarded for a correct answer.
	Marks decimal.Decimal `json:"marks"`
}

// RoundState is the per-round evaluation status of a Participant.
type RoundState string

const (
	RoundPending      RoundState = "pending"
	RoundQualified    RoundState = "qualified"
	RoundDisqualified RoundState = "disqualified"
)

// SubmissionStatus tracks a participant's position in the review pipeline.
type SubmissionStatus string

const (
	SubmissionNotSubmitted SubmissionStatus = "not_submitted"
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionReviewed     SubmissionStatus = "reviewed"
	SubmissionShortlisted  SubmissionStatus = "shortlisted"
	SubmissionRejected     SubmissionStatus = "rejected"
)

// RoundResult is one participant's outcome in one round.
type RoundResult struct {
	Status      RoundState       `json:"status"`
	Score       *decimal.Decimal `json:"score,omitempty"`
	Feedback    string           `json:"feedback,omitempty"`
	EvaluatedAt *time.Time       `json:"evaluatedAt,omitempty"`
}

// QuizSubmission is the stored result of an embedded-quiz run, upserted per
// (event, candidate).
type QuizSubmission struct {
	// Answers maps quiz question id to the selected option index.
	Answers     map[string]int  `json:"answers"`
	Score       decimal.Decimal `json:"score"`
	TotalMarks  decimal.Decimal `json:"totalMarks"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Participant is one registrant's progress record within an Event.
type Participant struct {
	ParticipantID string `json:"participantId"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	// CurrentRound starts at 1 and only advances on qualification. It
	// freezes on disqualification.
	CurrentRound int `json:"currentRound"`
	// Rounds is keyed by round number; one entry per round the participant
	// has been seeded or evaluated in.
	Rounds map[int]*RoundResult `json:"roundStatus"`
	// Score is the aggregate/current score. Nil means never evaluated; a
	// zero score is a real score and ranks on the leaderboard.
	Score            *decimal.Decimal `json:"score,omitempty"`
	SubmissionStatus SubmissionStatus `json:"submissionStatus"`
	Quiz             *QuizSubmission  `json:"quiz,omitempty"`
	// Rank and IsWinner are stamped only by explicit finalization, never by
	// the leaderboard read path.
	Rank         int       `json:"rank,omitempty"`
	IsWinner     bool      `json:"isWinner,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// RoundResultFor returns the participant's result for the round, creating a
// pending entry when absent.
func (p *Participant) RoundResultFor(roundNumber int) *RoundResult {
	if p.Rounds == nil {
		p.Rounds = make(map[int]*RoundResult)
	}
	if r, ok := p.Rounds[roundNumber]; ok {
		return r
	}
	r := &RoundResult{Status: RoundPending}
	p.Rounds[roundNumber] = r
	return r
}

// Event is a multi-round competition.
type Event struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	// Rounds are ordered with unique, strictly increasing round numbers.
	Rounds []Round `json:"rounds"`
	// Quiz is the optional embedded single-round quiz.
	Quiz []QuizQuestion `json:"quiz,omitempty"`
	// QuizDuration in minutes, when a quiz is embedded.
	QuizDuration         int            `json:"quizDuration,omitempty"`
	MaxTeamSize          int            `json:"maxTeamSize"`
	RegistrationDeadline *time.Time     `json:"registrationDeadline,omitempty"`
	Participants         []*Participant `json:"participants"`
}

// RoundByNumber returns the round descriptor, or false when undefined.
func (e *Event) RoundByNumber(n int) (Round, bool) {
	for _, r := range e.Rounds {
		if r.RoundNumber == n {
			return r, true
		}
	}
	return Round{}, false
}

// NextRound returns the first round defined after the given number.
func (e *Event) NextRound(after int) (Round, bool) {
	for _, r := range e.Rounds {
		if r.RoundNumber > after {
			return r, true
		}
	}
	return Round{}, false
}

// ParticipantByUser returns the participant registered for the user, or nil.
func (e *Event) ParticipantByUser(userID string) *Participant {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// ParticipantByID returns the participant with the given id, or nil.
func (e *Event) ParticipantByID(participantID string) *Participant {
	for _, p := range e.Participants {
		if p.ParticipantID == participantID {
			return p
		}
	}
	return nil
}

// QuizQuestionByID returns the embedded quiz question, or false.
func (e *Event) QuizQuestionByID(id string) (QuizQuestion, bool) {
	for _, q := range e.Quiz {
		if q.QuestionID == id {
			return q, true
		}
	}
	return QuizQuestion{}, false
}

// ValidateRounds checks that round numbers are unique and strictly
// increasing in declaration order.
func (e *Event) ValidateRounds() bool {
	prev := 0
	for _, r := range e.Rounds {
		if r.RoundNumber <= prev {
			return false
		}
		prev = r.RoundNumber
	}
	return true
}
