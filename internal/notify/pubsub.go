package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/talenthq/arena/internal/domain"
	"github.com/talenthq/arena/internal/event"
	"github.com/talenthq/arena/internal/store"
)

const maxConcurrent = 100

type (
	Message struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Standings struct {
		EventID string           `json:"event_id"`
		Entries []StandingsEntry `json:"entries"`
	}

	StandingsEntry struct {
		Rank        int    `json:"rank"`
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		Score       string `json:"score"`
	}
)

// Redis is the subset of the redis client the publisher needs.
type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher fans engine events out to per-user redis pub/sub channels, so
// connected clients see standings move in near real time. It also serves as
// a Notifier for direct messages.
type Publisher struct {
	redis  Redis
	prefix string
}

type PublisherConfig struct {
	EventBus *event.Bus
	Redis    Redis
	Prefix   string
}

func NewPublisher(c PublisherConfig) *Publisher {
	p := &Publisher{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return p.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return p
}

// Notify implements store.Notifier over the per-user channel.
func (p *Publisher) Notify(ctx context.Context, n store.Notification) error {
	return p.publish(ctx, n.RecipientID, "notification", n)
}

// PublishLeaderboardUpdated pushes the fresh standings to every ranked user.
func (p *Publisher) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Standings{
		EventID: l.EventID,
		Entries: make([]StandingsEntry, 0, len(l.Entries)),
	}

	for _, entry := range l.Entries {
		data.Entries = append(data.Entries, StandingsEntry{
			Rank:        entry.Rank,
			UserID:      entry.UserID,
			DisplayName: entry.DisplayName,
			Score:       strconv.FormatFloat(entry.Score, 'f', -1, 64),
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		entry := entry
		eg.Go(func() error {
			return p.publish(ctx, entry.UserID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (p *Publisher) publish(ctx context.Context, user, name string, data any) error {
	m := Message{
		Event: name,
		Data:  data,
	}

	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", name, err)
	}

	return p.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", p.prefix, user), b).Err()
}
