package analytics

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "clicks:"

// RedisSink keeps hot counters in a hash per shortcode: field "total" plus
// one field per source.
type RedisSink struct {
	rdb *redis.Client
}

func NewRedisSink(rdb *redis.Client) *RedisSink {
	return &RedisSink{rdb: rdb}
}

func RedisKey(shortCode string) string {
	return redisKeyPrefix + shortCode
}

func (s *RedisSink) Apply(ctx context.Context, b Batch) error {
	if len(b) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range b.Keys() {
			t := b[k]
			pipe.HIncrBy(ctx, RedisKey(k.ShortCode), "total", t.Count)
			pipe.HIncrBy(ctx, RedisKey(k.ShortCode), k.Source, t.Count)
		}
		return nil
	})
	return errors.Wrap(err, "increment redis click counters")
}

// Counters reads the hot counters of one shortcode.
func (s *RedisSink) Counters(ctx context.Context, shortCode string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, RedisKey(shortCode)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read counters for %q", shortCode)
	}
	return m, nil
}
