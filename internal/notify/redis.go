package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by server instances.
const DefaultChannel = "spyconsole:notify"

// Redis relays messages between server instances over Redis pub/sub.
// Publish sends to the channel; Run feeds every message received on the
// channel, including this instance's own, into the local bus.
type Redis struct {
	rdb     redis.UniversalClient
	channel string
	local   Notifier
	log     *slog.Logger
}

// NewRedis creates a relay. local receives messages read from Redis.
func NewRedis(rdb redis.UniversalClient, channel string, local Notifier, log *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Redis{rdb: rdb, channel: channel, local: local, log: log}
}

// Publish sends m to the Redis channel.
func (r *Redis) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Run subscribes to the channel and relays until ctx is done.
func (r *Redis) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so startup errors surface.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	r.log.Info("relaying notifications", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := decodeMessage(msg.Payload)
			if err != nil {
				r.log.Warn("dropping malformed notification", "error", err)
				continue
			}
			if err := r.local.Publish(ctx, m); err != nil {
				r.log.Warn("local delivery failed", "kind", m.Kind, "error", err)
			}
		}
	}
}

func decodeMessage(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, err
	}
	if m.Kind == "" {
		return Message{}, fmt.Errorf("notification without kind")
	}
	return m, nil
}
