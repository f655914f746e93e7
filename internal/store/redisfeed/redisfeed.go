// Package redisfeed carries store.Change notifications between processes
// over a Redis pub/sub channel, so that pgstore subscribers in every API
// instance see every commit.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pkordes/rideplanner/internal/store"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "ride-changes"

// Feed publishes changes to Redis and fans received changes out to local
// listeners. One Redis subscription serves all listeners.
type Feed struct {
	rdb     *goredis.Client
	channel string
	log     *slog.Logger
	local   *store.LocalFeed
}

// Dial connects to Redis at addr and checks the connection.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisfeed.Dial: ping: %w", err)
	}
	return rdb, nil
}

// New returns a feed on channel. Call Start before relying on Listen.
func New(rdb *goredis.Client, channel string, log *slog.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		rdb:     rdb,
		channel: channel,
		log:     log.With("component", "redisfeed", "channel", channel),
		local:   store.NewLocalFeed(),
	}
}

var _ store.Feed = (*Feed)(nil)

// Start subscribes to the channel and forwards changes to local listeners
// until ctx ends. It returns once the subscription is confirmed.
func (f *Feed) Start(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)

	// Receive blocks until Redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redisfeed.Feed.Start: subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				c, err := decode(m.Payload)
				if err != nil {
					f.log.Warn("bad change payload", "error", err)
					continue
				}
				f.local.Dispatch(c)
			}
		}
	}()
	return nil
}

// Publish sends c to every process listening on the channel, this one
// included.
func (f *Feed) Publish(ctx context.Context, c store.Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redisfeed.Feed.Publish: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel, raw).Err(); err != nil {
		return fmt.Errorf("redisfeed.Feed.Publish: %w", err)
	}
	return nil
}

// Listen registers fn for changes received from Redis.
func (f *Feed) Listen(ctx context.Context, fn func(store.Change)) (store.Cancel, error) {
	return f.local.Listen(ctx, fn)
}

// Close releases the Redis client.
func (f *Feed) Close() error {
	return f.rdb.Close()
}

func decode(payload string) (store.Change, error) {
	var c store.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return store.Change{}, err
	}
	if c.Path == "" || c.Collection == "" {
		return store.Change{}, fmt.Errorf("change missing path or collection")
	}
	return c, nil
}
