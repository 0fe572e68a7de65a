// Package grading holds the pure scoring primitives: one answer graded
// against one question definition, no side effects.
package grading

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/talenthq/arena/internal/domain"
)

// Result is the outcome of grading a single answer.
type Result struct {
	IsCorrect    bool
	PointsEarned decimal.Decimal
	// Skipped marks a question that could not be graded (unknown type,
	// missing correct answer). Skipped questions contribute to neither
	// earned nor total points; the caller logs the data-integrity concern.
	Skipped bool
}

// Grade evaluates a submitted answer against a question definition.
func Grade(q domain.Question, submitted []string) Result {
	switch q.Type {
	case domain.QuestionSingleChoice, domain.QuestionBoolean, domain.QuestionShortText:
		if len(q.CorrectAnswer) != 1 {
			return Result{Skipped: true, PointsEarned: decimal.Zero}
		}
		return resultFor(q, len(submitted) == 1 && textEqual(submitted[0], q.CorrectAnswer[0]))

	case domain.QuestionMultiSelect:
		if len(q.CorrectAnswer) == 0 {
			return Result{Skipped: true, PointsEarned: decimal.Zero}
		}
		return resultFor(q, setEqual(submitted, q.CorrectAnswer))

	default:
		return Result{Skipped: true, PointsEarned: decimal.Zero}
	}
}

// GradeQuizOption evaluates the indexed quiz variant. A nil or out-of-range
// selection is incorrect, never an error.
func GradeQuizOption(q domain.QuizQuestion, selected *int) Result {
	if selected == nil || *selected < 0 || *selected >= len(q.Options) {
		return Result{PointsEarned: decimal.Zero}
	}
	if *selected != q.CorrectOption {
		return Result{PointsEarned: decimal.Zero}
	}
	return Result{IsCorrect: true, PointsEarned: q.Marks}
}

func resultFor(q domain.Question, correct bool) Result {
	if !correct {
		return Result{PointsEarned: decimal.Zero}
	}
	return Result{IsCorrect: true, PointsEarned: q.Weight()}
}

// textEqual compares answers case-insensitively, ignoring surrounding
// whitespace.
func textEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// setEqual compares two answer collections as sets: order-independent,
// duplicates collapsed, any missing or extra element fails the whole answer.
func setEqual(submitted, correct []string) bool {
	a := normalizeSet(submitted)
	b := normalizeSet(correct)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
