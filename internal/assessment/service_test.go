package assessment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talenthq/arena/internal/assessment"
	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
	"github.com/talenthq/arena/internal/event"
	"github.com/talenthq/arena/internal/store/memory"
)

type fixture struct {
	svc   *assessment.Service
	store *memory.Store
	now   *time.Time
}

func makeFixture(t *testing.T, a *domain.Assessment) *fixture {
	t.Helper()

	st := memory.New()
	require.NoError(t, st.SaveAssessment(context.Background(), a))

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{store: st, now: &now}

	f.svc = assessment.NewService(assessment.Config{
		Assessments: st,
		Attempts:    st,
		EventBus:    event.NewBus(),
		Now:         func() time.Time { return *f.now },
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func twoQuestionAssessment() *domain.Assessment {
	return &domain.Assessment{
		AssessmentID: "a1",
		Title:        "Backend screening",
		CreatorID:    "recruiter",
		Questions: []domain.Question{
			{
				QuestionID:    "q1",
				Type:          domain.QuestionSingleChoice,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"A"},
			},
			{
				QuestionID:    "q2",
				Type:          domain.QuestionMultiSelect,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"A", "B"},
			},
		},
		Duration:       30,
		PassingScore:   decimal.NewFromInt(50),
		TabSwitchLimit: 3,
		IsPublic:       true,
		IsActive:       true,
	}
}

func TestService_StartAttempt(t *testing.T) {
	t.Run("starting twice resumes the same attempt", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())

		first, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "a1", CandidateID: "u1",
		})
		require.NoError(t, err)
		require.Equal(t, domain.AttemptInProgress, first.Status)

		second, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "a1", CandidateID: "u1",
		})
		require.NoError(t, err)
		require.Equal(t, first.AttemptID, second.AttemptID)

		a, err := f.store.GetAssessment(context.Background(), "a1")
		require.NoError(t, err)
		require.Equal(t, 1, a.TotalAttempts)
	})

	t.Run("concurrent starts converge on one attempt", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())

		const starters = 20
		ids := make([]string, starters)
		var wg sync.WaitGroup
		for i := 0; i < starters; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
					AssessmentID: "a1", CandidateID: "u1",
				})
				if assert.NoError(t, err) {
					ids[i] = at.AttemptID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			require.Equal(t, ids[0], id, "every starter must resume the same attempt")
		}

		a, err := f.store.GetAssessment(context.Background(), "a1")
		require.NoError(t, err)
		require.Equal(t, 1, a.TotalAttempts)
	})

	t.Run("inactive assessment refuses new attempts", func(t *testing.T) {
		a := twoQuestionAssessment()
		a.IsActive = false
		f := makeFixture(t, a)

		_, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "a1", CandidateID: "u1",
		})
		require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	})

	t.Run("private assessment enforces the allow-list", func(t *testing.T) {
		a := twoQuestionAssessment()
		a.IsPublic = false
		a.AllowedTakers = []string{"invited"}
		f := makeFixture(t, a)

		_, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "a1", CandidateID: "stranger",
		})
		require.True(t, errors.Is(err, errors.CodePermissionDenied))

		_, err = f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "a1", CandidateID: "invited",
		})
		require.NoError(t, err)
	})

	t.Run("unknown assessment is NotFound", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())

		_, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
			AssessmentID: "nope", CandidateID: "u1",
		})
		require.True(t, errors.Is(err, errors.CodeNotFound))
	})
}

func TestService_SaveAnswer(t *testing.T) {
	t.Run("upserts by question id", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u1", QuestionID: "q1", Answer: []string{"B"}, TimeTaken: 10,
		})
		require.NoError(t, err)

		got, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u1", QuestionID: "q1", Answer: []string{"A"}, TimeTaken: 25,
		})
		require.NoError(t, err)
		require.Len(t, got.Answers, 1)
		require.Equal(t, []string{"A"}, got.Answers[0].Answer)
		require.Equal(t, 25, got.Answers[0].TimeTaken)
	})

	t.Run("rejects questions outside the assessment", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u1", QuestionID: "q99", Answer: []string{"A"},
		})
		require.True(t, errors.Is(err, errors.CodeInvalidArgument))
	})

	t.Run("rejects another candidate's attempt", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u2", QuestionID: "q1", Answer: []string{"A"},
		})
		require.True(t, errors.Is(err, errors.CodePermissionDenied))
	})

	t.Run("rejects saves after submission", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")
		submit(t, f, at.AttemptID, "u1")

		_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u1", QuestionID: "q1", Answer: []string{"A"},
		})
		require.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	})

	t.Run("a save past the deadline expires the attempt and grades saved answers", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		save(t, f, at.AttemptID, "u1", "q1", "A")
		f.advance(31 * time.Minute)

		_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
			AttemptID: at.AttemptID, CandidateID: "u1", QuestionID: "q2", Answer: []string{"A", "B"},
		})
		require.True(t, errors.Is(err, errors.CodeFailedPrecondition))

		got, err := f.store.GetAttempt(context.Background(), at.AttemptID)
		require.NoError(t, err)
		require.Equal(t, domain.AttemptExpired, got.Status)
		require.Len(t, got.Answers, 1, "the late answer must not be saved")
		require.True(t, decimal.NewFromInt(50).Equal(got.Percentage), "got %s", got.Percentage)
	})
}

func TestService_SubmitAttempt(t *testing.T) {
	t.Run("all correct answers score 100 percent", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		save(t, f, at.AttemptID, "u1", "q1", "A")
		save(t, f, at.AttemptID, "u1", "q2", "B", "A")
		f.advance(5 * time.Minute)

		got := submit(t, f, at.AttemptID, "u1")

		require.Equal(t, domain.AttemptSubmitted, got.Status)
		require.True(t, decimal.NewFromInt(2).Equal(got.TotalScore))
		require.True(t, decimal.NewFromInt(100).Equal(got.Percentage))
		require.True(t, got.Passed)
		require.Equal(t, 300, got.TimeSpent)
		require.NotNil(t, got.SubmittedAt)
	})

	t.Run("unanswered questions count against the score", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")

		save(t, f, at.AttemptID, "u1", "q1", "A")

		got := submit(t, f, at.AttemptID, "u1")
		require.True(t, decimal.NewFromInt(50).Equal(got.Percentage), "got %s", got.Percentage)
		require.True(t, got.Passed, "50 meets the passing score of 50")
	})

	t.Run("an assessment with no gradable questions scores zero without dividing by zero", func(t *testing.T) {
		a := twoQuestionAssessment()
		a.Questions = nil
		f := makeFixture(t, a)
		at := start(t, f, "u1")

		got := submit(t, f, at.AttemptID, "u1")
		require.True(t, got.Percentage.IsZero())
		require.False(t, got.Passed)
	})

	t.Run("submit is effective exactly once", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")
		save(t, f, at.AttemptID, "u1", "q1", "A")
		first := submit(t, f, at.AttemptID, "u1")

		_, err := f.svc.SubmitAttempt(context.Background(), assessment.SubmitAttemptRequest{
			AttemptID: at.AttemptID, CandidateID: "u1",
		})
		require.True(t, errors.Is(err, errors.CodeFailedPrecondition))

		got, err := f.store.GetAttempt(context.Background(), at.AttemptID)
		require.NoError(t, err)
		require.True(t, first.Percentage.Equal(got.Percentage), "score fields must be unchanged")
		require.Equal(t, first.SubmittedAt.Unix(), got.SubmittedAt.Unix())
	})

	t.Run("average score is the mean over submitted attempts only", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())

		at1 := start(t, f, "u1")
		save(t, f, at1.AttemptID, "u1", "q1", "A")
		save(t, f, at1.AttemptID, "u1", "q2", "A", "B")
		submit(t, f, at1.AttemptID, "u1") // 100

		at2 := start(t, f, "u2")
		save(t, f, at2.AttemptID, "u2", "q1", "A")
		submit(t, f, at2.AttemptID, "u2") // 50

		// A third candidate gets flagged; their attempt must not count.
		at3 := start(t, f, "u3")
		for i := 0; i < 3; i++ {
			_, err := f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
				AttemptID: at3.AttemptID, CandidateID: "u3",
			})
			require.NoError(t, err)
		}

		a, err := f.store.GetAssessment(context.Background(), "a1")
		require.NoError(t, err)
		require.Equal(t, 3, a.TotalAttempts)
		require.True(t, decimal.NewFromInt(75).Equal(a.AverageScore), "got %s", a.AverageScore)
	})
}

func TestService_ReportTabSwitch(t *testing.T) {
	t.Run("warns one below the limit and flags at the limit", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")
		save(t, f, at.AttemptID, "u1", "q1", "A")

		resp, err := f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
			AttemptID: at.AttemptID, CandidateID: "u1",
		})
		require.NoError(t, err)
		require.False(t, resp.Warning)
		require.Equal(t, domain.AttemptInProgress, resp.Attempt.Status)

		resp, err = f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
			AttemptID: at.AttemptID, CandidateID: "u1",
		})
		require.NoError(t, err)
		require.True(t, resp.Warning, "second of three must be the final warning")
		require.Equal(t, domain.AttemptInProgress, resp.Attempt.Status)

		resp, err = f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
			AttemptID: at.AttemptID, CandidateID: "u1",
		})
		require.NoError(t, err)
		require.True(t, resp.Attempt.Flagged)
		require.Equal(t, domain.AttemptFlagged, resp.Attempt.Status)
		require.Equal(t, "Exceeded tab switch limit (3/3)", resp.Attempt.FlagReason)
		require.True(t, decimal.NewFromInt(50).Equal(resp.Attempt.Percentage),
			"auto-submit must grade the answers saved so far")
	})

	t.Run("reports after a terminal state are no-ops", func(t *testing.T) {
		f := makeFixture(t, twoQuestionAssessment())
		at := start(t, f, "u1")
		submit(t, f, at.AttemptID, "u1")

		resp, err := f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
			AttemptID: at.AttemptID, CandidateID: "u1",
		})
		require.NoError(t, err)
		require.Equal(t, domain.AttemptSubmitted, resp.Attempt.Status)
		require.Equal(t, 0, resp.Attempt.TabSwitches)
		require.False(t, resp.Attempt.Flagged)
	})

	t.Run("limit zero never flags", func(t *testing.T) {
		a := twoQuestionAssessment()
		a.TabSwitchLimit = 0
		f := makeFixture(t, a)
		at := start(t, f, "u1")

		for i := 0; i < 10; i++ {
			resp, err := f.svc.ReportTabSwitch(context.Background(), assessment.ReportTabSwitchRequest{
				AttemptID: at.AttemptID, CandidateID: "u1",
			})
			require.NoError(t, err)
			require.False(t, resp.Warning)
			require.Equal(t, domain.AttemptInProgress, resp.Attempt.Status)
		}
	})
}

func start(t *testing.T, f *fixture, candidate string) *domain.Attempt {
	t.Helper()
	at, err := f.svc.StartAttempt(context.Background(), assessment.StartAttemptRequest{
		AssessmentID: "a1", CandidateID: candidate,
	})
	require.NoError(t, err)
	return at
}

func save(t *testing.T, f *fixture, attemptID, candidate, questionID string, answer ...string) {
	t.Helper()
	_, err := f.svc.SaveAnswer(context.Background(), assessment.SaveAnswerRequest{
		AttemptID: attemptID, CandidateID: candidate, QuestionID: questionID, Answer: answer,
	})
	require.NoError(t, err)
}

func submit(t *testing.T, f *fixture, attemptID, candidate string) *domain.Attempt {
	t.Helper()
	at, err := f.svc.SubmitAttempt(context.Background(), assessment.SubmitAttemptRequest{
		AttemptID: attemptID, CandidateID: candidate,
	})
	require.NoError(t, err)
	return at
}
