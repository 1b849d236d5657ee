package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tapranked:ratelimit:"

// RedisLimiter считает запросы в фиксированном окне в Redis (INCR + PEXPIRE).
// При недоступности Redis запрос пропускается, а ошибка возвращается вызывающему.
type RedisLimiter struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisLimiter создаёт лимитер поверх клиента Redis.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client, timeout: 500 * time.Millisecond}
}

// Allow увеличивает счётчик окна и сравнивает его с лимитом.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	k := redisKeyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis rate limit: %w", err)
	}

	retryAfter := ttl.Val()
	if retryAfter < 0 {
		if err := l.client.PExpire(ctx, k, rule.Window).Err(); err != nil {
			return Decision{Allowed: true}, fmt.Errorf("redis rate limit expire: %w", err)
		}
		retryAfter = rule.Window
	}

	count := int(incr.Val())
	if count > rule.Limit {
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}
	return Decision{Allowed: true, Remaining: rule.Limit - count}, nil
}
