package grading_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/grading"
)

func TestGrade(t *testing.T) {
	tests := map[string]struct {
		question  domain.Question
		submitted []string

		wantCorrect bool
		wantPoints  int64
		wantSkipped bool
	}{
		"single-choice exact match": {
			question: domain.Question{
				Type:          domain.QuestionSingleChoice,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"B"},
				Points:        decimal.NewFromInt(2),
			},
			submitted:   []string{"B"},
			wantCorrect: true,
			wantPoints:  2,
		},

		"single-choice is case-insensitive and trims whitespace": {
			question: domain.Question{
				Type:          domain.QuestionShortText,
				CorrectAnswer: []string{"Paris"},
			},
			submitted:   []string{"  paris "},
			wantCorrect: true,
			wantPoints:  1,
		},

		"single-choice wrong answer earns zero": {
			question: domain.Question{
				Type:          domain.QuestionSingleChoice,
				Options:       []string{"A", "B"},
				CorrectAnswer: []string{"A"},
				Points:        decimal.NewFromInt(3),
			},
			submitted: []string{"B"},
		},

		"boolean matches ignoring case": {
			question: domain.Question{
				Type:          domain.QuestionBoolean,
				CorrectAnswer: []string{"true"},
			},
			submitted:   []string{"TRUE"},
			wantCorrect: true,
			wantPoints:  1,
		},

		"multi-select order does not matter": {
			question: domain.Question{
				Type:          domain.QuestionMultiSelect,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"A", "B"},
			},
			submitted:   []string{"B", "A"},
			wantCorrect: true,
			wantPoints:  1,
		},

		"multi-select missing element is fully incorrect": {
			question: domain.Question{
				Type:          domain.QuestionMultiSelect,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"A", "B"},
			},
			submitted: []string{"A"},
		},

		"multi-select extra element is fully incorrect": {
			question: domain.Question{
				Type:          domain.QuestionMultiSelect,
				Options:       []string{"A", "B", "C"},
				CorrectAnswer: []string{"A", "B"},
			},
			submitted: []string{"A", "B", "C"},
		},

		"multi-select duplicate submissions collapse": {
			question: domain.Question{
				Type:          domain.QuestionMultiSelect,
				Options:       []string{"A", "B"},
				CorrectAnswer: []string{"A", "B"},
			},
			submitted:   []string{"A", "A", "B"},
			wantCorrect: true,
			wantPoints:  1,
		},

		"no submission is incorrect, not an error": {
			question: domain.Question{
				Type:          domain.QuestionSingleChoice,
				Options:       []string{"A", "B"},
				CorrectAnswer: []string{"A"},
			},
			submitted: nil,
		},

		"unknown question type is skipped": {
			question: domain.Question{
				Type:          domain.QuestionType("essay"),
				CorrectAnswer: []string{"anything"},
			},
			submitted:   []string{"anything"},
			wantSkipped: true,
		},

		"missing correct answer is skipped": {
			question: domain.Question{
				Type: domain.QuestionSingleChoice,
			},
			submitted:   []string{"A"},
			wantSkipped: true,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := grading.Grade(tt.question, tt.submitted)

			assert.Equal(t, tt.wantSkipped, res.Skipped)
			assert.Equal(t, tt.wantCorrect, res.IsCorrect)
			assert.True(t, decimal.NewFromInt(tt.wantPoints).Equal(res.PointsEarned),
				"points: want %d, got %s", tt.wantPoints, res.PointsEarned)
		})
	}
}

func TestGradeQuizOption(t *testing.T) {
	q := domain.QuizQuestion{
		QuestionID:    "q1",
		Options:       []string{"red", "green", "blue"},
		CorrectOption: 1,
		Marks:         decimal.NewFromInt(5),
	}

	idx := func(i int) *int { return &i }

	tests := map[string]struct {
		selected    *int
		wantCorrect bool
		wantPoints  int64
	}{
		"correct index":      {selected: idx(1), wantCorrect: true, wantPoints: 5},
		"wrong index":        {selected: idx(0)},
		"nil selection":      {selected: nil},
		"negative index":     {selected: idx(-1)},
		"out of range index": {selected: idx(3)},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := grading.GradeQuizOption(q, tt.selected)

			assert.Equal(t, tt.wantCorrect, res.IsCorrect)
			assert.True(t, decimal.NewFromInt(tt.wantPoints).Equal(res.PointsEarned))
		})
	}
}
