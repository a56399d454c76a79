package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/rueidis"
)

// RedisNotifier pushes messages onto a Redis list the bot transport drains.
// The state mutation always commits before the push, so a crash in between
// loses at most the notification, never the transition.
type RedisNotifier struct {
	client rueidis.Client
	key    string
}

func NewRedisNotifier(client rueidis.Client, outboxKey string) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		key:    outboxKey,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cmd := n.client.B().Rpush().Key(n.key).Element(string(payload)).Build()
	return n.client.Do(ctx, cmd).Error()
}
