// Package telemetry fans a fire-and-forget event stream out to Redis
// Pub/Sub for external dashboards. Nothing in the live core subscribes to
// it — it is a write-only side channel, never a source of truth.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const Channel = "buzzer:events"

const publishTimeout = 2 * time.Second

// Publisher emits a best-effort event after a committed room transition.
type Publisher interface {
	Publish(roomCode, op string)
}

type event struct {
	RoomCode string    `json:"roomCode"`
	Op       string    `json:"op"`
	At       time.Time `json:"at"`
}

// RedisPublisher publishes to the buzzer:events channel.
type RedisPublisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(roomCode, op string) {
	payload, err := json.Marshal(event{RoomCode: roomCode, Op: op, At: time.Now()})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
		p.log.Debug().Err(err).Str("room_code", roomCode).Msg("telemetry publish failed")
	}
}

// NoopPublisher is used when no Redis URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, string) {}
