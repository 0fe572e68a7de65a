package domain

import "time"

// LeaderboardEntry is one ranked row of an event leaderboard. Equal scores
// share a rank number; the next distinct score takes its 1-based sorted
// position (competition ranking with gaps).
type LeaderboardEntry struct {
	Rank          int       `json:"rank"`
	ParticipantID string    `json:"participantId"`
	UserID        string    `json:"userId"`
	DisplayName   string    `json:"displayName"`
	Score         float64   `json:"score"`
	Feedback      string    `json:"feedback,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Leaderboard is one page of the ranked scoreboard for an Event. Ranks are
// computed over the full participant set before pagination.
type Leaderboard struct {
	EventID string `json:"eventId"`
	// Total is the number of ranked participants across all pages.
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"perPage"`
	Entries []LeaderboardEntry `json:"entries"`
}
