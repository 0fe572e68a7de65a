// Package leaderboard computes ranked standings for an event. The read path
// always recomputes from the store; the redis ZSET kept alongside is a
// non-authoritative snapshot for push consumers.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/errors"
	"github.com/talenthq/arena/internal/event"
	"github.com/talenthq/arena/internal/store"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultPerPage  = 50
	maxPerPage      = 200
)

// Rank orders participants into competition ranking: filter to scored
// participants, sort by score descending, equal scores share a rank number,
// and the next distinct score takes its 1-based sorted position (gaps, not
// dense ranking). Ties order deterministically by earlier last update, then
// participant id; secondary order never changes rank numbers.
func Rank(participants []*domain.Participant) []domain.LeaderboardEntry {
	scored := make([]*domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Score != nil {
			scored = append(scored, p)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if !a.Score.Equal(*b.Score) {
			return a.Score.GreaterThan(*b.Score)
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		return a.ParticipantID < b.ParticipantID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(scored))
	for i, p := range scored {
		rank := i + 1
		if i > 0 && p.Score.Equal(*scored[i-1].Score) {
			rank = entries[i-1].Rank
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:          rank,
			ParticipantID: p.ParticipantID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			Score:         p.Score.InexactFloat64(),
			Feedback:      latestFeedback(p),
			LastUpdated:   p.LastUpdated,
		})
	}
	return entries
}

// latestFeedback returns the feedback of the most recently evaluated round.
func latestFeedback(p *domain.Participant) string {
	var (
		feedback string
		latest   time.Time
	)
	for _, rr := range p.Rounds {
		if rr.EvaluatedAt == nil || rr.Feedback == "" {
			continue
		}
		if rr.EvaluatedAt.After(latest) {
			latest = *rr.EvaluatedAt
			feedback = rr.Feedback
		}
	}
	return feedback
}

type Config struct {
	Events   store.EventStore
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	events store.EventStore
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		events: c.Events,
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	if s.eb != nil {
		s.eb.Subscribe(domain.EventNameRoundEvaluated, func(ctx context.Context, e event.Event) error {
			return s.RefreshSnapshot(ctx, e.(domain.EventRoundEvaluated).EventID)
		})
		s.eb.Subscribe(domain.EventNameQuizSubmitted, func(ctx context.Context, e event.Event) error {
			return s.RefreshSnapshot(ctx, e.(domain.EventQuizSubmitted).EventID)
		})
		s.eb.Subscribe(domain.EventNameWinnersFinalized, func(ctx context.Context, e event.Event) error {
			return s.RefreshSnapshot(ctx, e.(domain.EventWinnersFinalized).EventID)
		})
	}

	return s
}

type GetLeaderboardRequest struct {
	EventID string
	// Page is 1-based; zero means the first page.
	Page    int
	PerPage int
}

// GetLeaderboard recomputes the full ranking from the store and then
// paginates, so rank numbers are globally correct on every page.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	e, err := s.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	entries := Rank(e.Participants)

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	start := (page - 1) * perPage
	if start > len(entries) {
		start = len(entries)
	}
	end := start + perPage
	if end > len(entries) {
		end = len(entries)
	}

	return &domain.Leaderboard{
		EventID: req.EventID,
		Total:   len(entries),
		Page:    page,
		PerPage: perPage,
		Entries: entries[start:end],
	}, nil
}

// RefreshSnapshot recomputes the ranking and mirrors it into the redis ZSET,
// then schedules a debounced leaderboard-updated publish.
func (s *Service) RefreshSnapshot(ctx context.Context, eventID string) error {
	if s.redis == nil {
		return nil
	}

	e, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}

	entries := Rank(e.Participants)
	if len(entries) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(entries))
	for _, entry := range entries {
		members = append(members, redis.Z{
			Score:  entry.Score,
			Member: entry.UserID,
		})
	}

	if err := s.redis.ZAdd(ctx, s.snapshotKey(eventID), members...).Err(); err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}

	return s.schedulePublish(ctx, eventID)
}

// schedulePublish publishes leaderboard changes at most once per interval:
// many evaluations land in a short window during judging, and per-change
// publishes would flood push consumers.
func (s *Service) schedulePublish(ctx context.Context, eventID string) error {
	ok, err := s.redis.SetNX(ctx, s.publishTimeKey(eventID), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publish(ctx, eventID)
}

func (s *Service) publish(ctx context.Context, eventID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{EventID: eventID})
	if err != nil {
		return fmt.Errorf("get leaderboard: event=%s: %w", eventID, err)
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventLeaderboardUpdated{Leaderboard: *l})
	}
	return nil
}

// SnapshotTop reads the top-n members of the cached ZSET. It serves push
// consumers only; authoritative reads go through GetLeaderboard.
func (s *Service) SnapshotTop(ctx context.Context, eventID string, n int64) ([]domain.LeaderboardEntry, error) {
	if s.redis == nil {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("no snapshot backend configured"))
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.snapshotKey(eventID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for i, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   i + 1,
			UserID: z.Member.(string),
			Score:  z.Score,
		})
	}
	return entries, nil
}

func (s *Service) snapshotKey(eventID string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, eventID)
}

func (s *Service) publishTimeKey(eventID string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, eventID)
}
