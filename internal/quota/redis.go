package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kodescruxx/kx-cli/internal/api"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

// RedisBroadcaster shares quota over a Redis pub/sub channel, for users
// running kx on more than one machine.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	logger  zerolog.Logger
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Channel returns the pub/sub channel for a user. The token is hashed so
// it never appears in Redis.
func Channel(prefix, token string) string {
	return prefix + "quota:" + strconv.FormatUint(xxh3.HashString(token), 16)
}

// NewRedisBroadcaster publishes and subscribes on channel.
func NewRedisBroadcaster(rdb *redis.Client, channel string, logger zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel, logger: logger}
}

// Publish sends info to every subscriber.
func (b *RedisBroadcaster) Publish(ctx context.Context, info api.QuotaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Subscribe delivers every message on the channel until ctx is done.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, fn func(api.QuotaInfo)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Debug().Str("channel", b.channel).Msg("quota subscription started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var info api.QuotaInfo
			if err := json.Unmarshal([]byte(msg.Payload), &info); err != nil {
				b.logger.Warn().Err(err).Msg("ignoring malformed quota message")
				continue
			}
			fn(info)
		}
	}
}
