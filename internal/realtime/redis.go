package realtime

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisBroker fans progress events out to every server process over a Redis
// pub/sub channel. Run relays everything received on the channel, including
// this process's own publishes, into the local feed.
type RedisBroker struct {
	client  *redis.Client
	channel string
	feed    *Feed
	log     logrus.FieldLogger
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisBroker(client *redis.Client, channel string, feed *Feed, log logrus.FieldLogger) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, feed: feed, log: log}
}

func (b *RedisBroker) Publish(ctx context.Context, ev ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run blocks until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	b.log.WithField("channel", b.channel).Info("relaying progress events from redis")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.WithError(err).Warn("dropping malformed progress event")
				continue
			}
			b.feed.Deliver(ev)
		}
	}
}
