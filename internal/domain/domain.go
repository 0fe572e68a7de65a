package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionType enumerates the evaluable question kinds of an assessment.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single-choice"
	QuestionMultiSelect  QuestionType = "multi-select"
	QuestionBoolean      QuestionType = "boolean"
	QuestionShortText    QuestionType = "short-text"
)

// Question is one evaluable item inside an Assessment.
type Question struct {
	QuestionID string       `json:"questionId"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"prompt"`
	// Options holds the candidate answer choices, ordered. Empty for
	// boolean/short-text questions.
	Options []string `json:"options,omitempty"`
	// CorrectAnswer holds a single value for single-choice/boolean/short-text
	// questions and the full expected set for multi-select questions.
	CorrectAnswer []string `json:"correctAnswer"`
	// Points awarded when the answer is correct. Zero means the default of 1.
	Points decimal.Decimal `json:"points"`
}

// Weight returns the points this question contributes, applying the default
// of 1 for unset points.
func (q Question) Weight() decimal.Decimal {
	if q.Points.IsZero() {
		return decimal.NewFromInt(1)
	}
	return q.Points
}

// Assessment is a reusable timed test.
type Assessment struct {
	AssessmentID string     `json:"assessmentId"`
	Title        string     `json:"title"`
	CreatorID    string     `json:"creatorId"`
	Questions    []Question `json:"questions"`
	// Duration of one attempt, in minutes.
	Duration int `json:"duration"`
	// PassingScore is a percentage in [0, 100].
	PassingScore decimal.Decimal `json:"passingScore"`
	// TabSwitchLimit is the number of tab switches that flags an attempt.
	// Zero disables proctoring.
	TabSwitchLimit int  `json:"tabSwitchLimit"`
	IsPublic       bool `json:"isPublic"`
	// AllowedTakers is the allow-list consulted when IsPublic is false.
	AllowedTakers []string `json:"allowedTakers,omitempty"`
	// IsActive soft-disables the assessment instead of deleting it while
	// attempts still reference it.
	IsActive bool `json:"isActive"`

	// TotalAttempts and AverageScore are recomputed from the attempt set,
	// never incremented in place.
	TotalAttempts int             `json:"totalAttempts"`
	AverageScore  decimal.Decimal `json:"averageScore"`
}

// QuestionByID returns the question with the given id, or false when the
// assessment does not contain it.
func (a *Assessment) QuestionByID(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.QuestionID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AllowsTaker reports whether the candidate may start an attempt.
func (a *Assessment) AllowsTaker(candidateID string) bool {
	if a.IsPublic || candidateID == a.CreatorID {
		return true
	}
	for _, id := range a.AllowedTakers {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Deadline returns the instant after which an attempt started at the given
// time no longer accepts answers.
func (a *Assessment) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(a.Duration) * time.Minute)
}

// AttemptStatus is the finite state of an Attempt. InProgress is the only
// mutable state; the other three are terminal.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in-progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
	AttemptFlagged    AttemptStatus = "flagged"
)

// AnswerRecord is one saved answer within an Attempt, graded on submission.
type AnswerRecord struct {
	QuestionID   string          `json:"questionId"`
	Answer       []string        `json:"answer"`
	IsCorrect    bool            `json:"isCorrect"`
	PointsEarned decimal.Decimal `json:"pointsEarned"`
	// TimeTaken on this question, in seconds, as reported by the client.
	TimeTaken int `json:"timeTaken"`
}

// Attempt is one candidate's timed run through an Assessment.
type Attempt struct {
	AttemptID    string          `json:"attemptId"`
	AssessmentID string          `json:"assessmentId"`
	CandidateID  string          `json:"candidateId"`
	Answers      []AnswerRecord  `json:"answers"`
	TotalScore   decimal.Decimal `json:"totalScore"`
	Percentage   decimal.Decimal `json:"percentage"`
	Passed       bool            `json:"passed"`
	StartedAt    time.Time       `json:"startedAt"`
	SubmittedAt  *time.Time      `json:"submittedAt,omitempty"`
	// TimeSpent between start and submission, in whole seconds.
	TimeSpent   int           `json:"timeSpent"`
	TabSwitches int           `json:"tabSwitches"`
	Flagged     bool          `json:"flagged"`
	FlagReason  string        `json:"flagReason,omitempty"`
	Status      AttemptStatus `json:"status"`
}

// Terminal reports whether the attempt has left the in-progress state.
// Terminal attempts never transition again.
func (at *Attempt) Terminal() bool {
	return at.Status != AttemptInProgress
}

// AnswerFor returns the saved answer for a question, or nil.
func (at *Attempt) AnswerFor(questionID string) *AnswerRecord {
	for i := range at.Answers {
		if at.Answers[i].QuestionID == questionID {
			return &at.Answers[i]
		}
	}
	return nil
}

// UpsertAnswer replaces the answer for the question if present, otherwise
// appends it, preserving first-save order.
func (at *Attempt) UpsertAnswer(rec AnswerRecord) {
	if cur := at.AnswerFor(rec.QuestionID); cur != nil {
		*cur = rec
		return
	}
	at.Answers = append(at.Answers, rec)
}
