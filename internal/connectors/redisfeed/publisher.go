package redisfeed

import (
	"context"

	"github.com/knasko/vusd/internal/config"
	"github.com/redis/go-redis/v9"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(cfg *config.Config) *Publisher {
	return NewPublisherWithClient(newClient(cfg), cfg.Redis.Stream, cfg.Redis.MaxLen)
}

func NewPublisherWithClient(rdb *redis.Client, stream string, maxLen int64) *Publisher {
	if stream == "" {
		stream = defaultStream
	}
	return &Publisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Publish appends r to the stream, trimming it to roughly maxLen entries.
func (p *Publisher) Publish(ctx context.Context, r CycleReport) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: r.values(),
	}).Err()
}

func (p *Publisher) Close() error { return p.rdb.Close() }
