package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "campusmatch:events:"

// RedisBus fans events out across instances through Redis pub/sub.
// One channel per table.
type RedisBus struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisBus(client *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+e.Table, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, f Filter) (<-chan Event, func(), error) {
	var pubsub *redis.PubSub
	if f.Table != "" {
		pubsub = b.client.Subscribe(ctx, channelPrefix+f.Table)
	} else {
		pubsub = b.client.PSubscribe(ctx, channelPrefix+"*")
	}

	// wait for the subscription so nothing published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	subCtx, stop := context.WithCancel(ctx)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.log.Warn("dropping malformed event", "channel", msg.Channel, "err", err)
					continue
				}
				if !f.Matches(e) {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()

	go func() {
		<-subCtx.Done()
		cancel()
	}()

	return out, cancel, nil
}
