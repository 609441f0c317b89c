package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisChannel is used when no channel is configured.
	DefaultRedisChannel = "hls:events"

	publishTimeout = 5 * time.Second
)

// RedisPublisher is the subset of *redis.Client the sink uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes events as JSON envelopes on a pub/sub channel, one channel
// per stream under the configured prefix.
type Redis struct {
	client  RedisPublisher
	channel string
}

// NewRedis returns a sink publishing on <channel>:<app>/<stream>.
func NewRedis(client RedisPublisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{client: client, channel: channel}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Channel returns the channel events of app/stream are published on.
func (r *Redis) Channel(app, stream string) string {
	return r.channel + ":" + app + "/" + stream
}

func (r *Redis) Notify(ctx context.Context, ev Event) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.Channel(ev.App, ev.Stream), body).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
