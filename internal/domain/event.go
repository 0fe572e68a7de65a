package domain

const (
	EventNameAttemptSubmitted   = "attempt.submitted"
	EventNameAttemptFlagged     = "attempt.flagged"
	EventNameAttemptExpired     = "attempt.expired"
	EventNameRoundEvaluated     = "round.evaluated"
	EventNameQuizSubmitted      = "quiz.submitted"
	EventNameWinnersFinalized   = "event.finalized"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventAttemptSubmitted struct {
	Attempt Attempt
}

func (EventAttemptSubmitted) Name() string { return EventNameAttemptSubmitted }

type EventAttemptFlagged struct {
	Attempt Attempt
}

func (EventAttemptFlagged) Name() string { return EventNameAttemptFlagged }

type EventAttemptExpired struct {
	Attempt Attempt
}

func (EventAttemptExpired) Name() string { return EventNameAttemptExpired }

type EventRoundEvaluated struct {
	EventID     string
	Participant Participant
	RoundNumber int
}

func (EventRoundEvaluated) Name() string { return EventNameRoundEvaluated }

type EventQuizSubmitted struct {
	EventID     string
	Participant Participant
}

func (EventQuizSubmitted) Name() string { return EventNameQuizSubmitted }

type EventWinnersFinalized struct {
	EventID string
}

func (EventWinnersFinalized) Name() string { return EventNameWinnersFinalized }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
