package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel carries board events between service instances.
const DefaultChannel = "kanban:board-events"

// RedisPublisher publishes events so that every instance's RedisRelay can
// hand them to its local Hub.
type RedisPublisher struct {
	rc      *redis.Client
	channel string
}

func NewRedisPublisher(rc *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rc: rc, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rc.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s for board %s: %w", ev.Type, ev.BoardID, err)
	}
	return nil
}

// RedisRelay subscribes to the shared channel and forwards every event to
// local. Run blocks until ctx is done, resubscribing if the channel drops.
type RedisRelay struct {
	rc      *redis.Client
	channel string
	local   Notifier
	log     *logger.Logger
}

func NewRedisRelay(rc *redis.Client, channel string, local Notifier, log *logger.Logger) *RedisRelay {
	return &RedisRelay{rc: rc, channel: channel, local: local, log: log}
}

func (r *RedisRelay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.log.Error("unable to parse board event", "error", err)
					continue
				}
				if err := r.local.Notify(ctx, ev); err != nil {
					r.log.Error("deliver board event", "board_id", ev.BoardID, "error", err)
				}
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.log.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
