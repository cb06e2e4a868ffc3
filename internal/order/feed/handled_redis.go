package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

// RedisHandledSet keeps the handled ids of one operator session in a Redis set,
// so a console restart inside the session does not re-print orders.
type RedisHandledSet struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisHandledSet(client redis.Cmdable, session string, ttl time.Duration) *RedisHandledSet {
	return &RedisHandledSet{
		client: client,
		key:    fmt.Sprintf("console:handled:%s", session),
		ttl:    ttl,
	}
}

func (s *RedisHandledSet) Contains(ctx context.Context, id domain.OrderID) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, string(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis sismember")
	}
	return ok, nil
}

func (s *RedisHandledSet) Add(ctx context.Context, id domain.OrderID) (bool, error) {
	n, err := s.client.SAdd(ctx, s.key, string(id)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis sadd")
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return n == 1, errors.Wrap(err, "redis expire")
		}
	}
	return n == 1, nil
}

func (s *RedisHandledSet) Reset(ctx context.Context) error {
	return errors.Wrap(s.client.Del(ctx, s.key).Err(), "redis del")
}

func (s *RedisHandledSet) Len(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis scard")
	}
	return int(n), nil
}
