package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vidcurate/backend/internal/logging"
)

// DefaultEventChannel is the Redis channel session events are published on.
const DefaultEventChannel = "vidcurate:session-events"

// RedisBus relays session events through Redis pub/sub so every instance sees
// sign-ins and sign-outs issued by its peers. Delivery to local subscribers
// happens from Run, including for events this instance published.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *LocalBus
}

// NewRedisBus constructs a bus on the given channel.
func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisBus{client: client, channel: channel, local: NewLocalBus()}
}

// Publish sends the event to Redis.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe registers a local handler.
func (b *RedisBus) Subscribe(handler func(Event)) Subscription {
	return b.local.Subscribe(handler)
}

// Run receives events from Redis and fans them out locally until ctx is canceled.
func (b *RedisBus) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	messages := pubsub.Channel()
	logger := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := decodeEvent(msg.Payload)
			if err != nil {
				logger.Warn("drop malformed session event", "error", err)
				continue
			}
			_ = b.local.Publish(ctx, event)
		}
	}
}

func decodeEvent(payload string) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, fmt.Errorf("decode session event: %w", err)
	}
	switch event.Kind {
	case EventSignedIn, EventSignedOut:
	default:
		return Event{}, fmt.Errorf("decode session event: unknown kind %q", event.Kind)
	}
	if event.SessionID == "" {
		return Event{}, fmt.Errorf("decode session event: missing session id")
	}
	return event, nil
}
