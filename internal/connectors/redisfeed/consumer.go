package redisfeed

import (
	"context"
	"errors"
	"time"

	"github.com/knasko/vusd/internal/config"
	"github.com/redis/go-redis/v9"
)

const defaultStream = "arb:cycles"

func newClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
}

type Consumer struct {
	rdb    *redis.Client
	stream string
}

func NewConsumer(cfg *config.Config) *Consumer {
	return NewConsumerWithClient(newClient(cfg), cfg.Redis.Stream)
}

func NewConsumerWithClient(rdb *redis.Client, stream string) *Consumer {
	if stream == "" {
		stream = defaultStream
	}
	return &Consumer{rdb: rdb, stream: stream}
}

// Tail returns the latest n reports, oldest first.
func (c *Consumer) Tail(ctx context.Context, n int64) ([]CycleReport, error) {
	msgs, err := c.rdb.XRevRangeN(ctx, c.stream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]CycleReport, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, reportFrom(msgs[i].ID, msgs[i].Values))
	}
	return out, nil
}

// Follow streams reports added after fromID ("$" for new ones only) until
// ctx is done.
func (c *Consumer) Follow(ctx context.Context, fromID string, out chan<- CycleReport) error {
	last := fromID
	for {
		streams, err := c.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.stream, last},
			Count:   100,
			Block:   time.Second,
		}).Result()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			// транзиентные ошибки: пауза и повтор
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				last = m.ID
				select {
				case out <- reportFrom(m.ID, m.Values):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (c *Consumer) Close() error { return c.rdb.Close() }
