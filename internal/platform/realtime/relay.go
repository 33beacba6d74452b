package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monjedAmarna/chronicare-sub001/internal/platform/metrics"
)

// RedisRelay fans events out across server instances with Redis pub/sub.
// Every instance subscribes to one channel and hands received events to its
// local hub, so a user connected to any instance receives the event. Pub/sub
// keeps no history: events published while an instance is disconnected are
// lost, the same as for a dropped websocket.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Publisher
	logger  zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewRedisRelay(client *redis.Client, channel string, local Publisher, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With().Str("component", "realtime_relay").Logger(),
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Publish sends the event to every instance. If Redis is unreachable the
// event is still delivered to this instance's channels.
func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	if event.UserID == uuid.Nil {
		return ErrUnroutable
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		metrics.RealtimeRelayErrorsTotal.Inc()
		if lerr := r.local.Publish(ctx, event); lerr != nil {
			return lerr
		}
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Start subscribes to the relay channel and returns once the subscription is
// confirmed. Received events are delivered locally until ctx ends or Close.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop(ctx, pubsub.Channel(), r.done)
	r.logger.Info().Str("channel", r.channel).Msg("realtime relay subscribed")
	return nil
}

func (r *RedisRelay) loop(ctx context.Context, msgs <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				metrics.RealtimeRelayErrorsTotal.Inc()
				r.logger.Warn().Err(err).Msg("discarding malformed relay message")
				continue
			}
			if err := r.local.Publish(ctx, event); err != nil {
				r.logger.Warn().Err(err).Str("type", event.Type).Msg("relay delivery failed")
			}
		}
	}
}

// Close stops the subscription and waits for the delivery loop to exit.
func (r *RedisRelay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
