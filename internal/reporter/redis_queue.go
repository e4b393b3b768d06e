package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shenikar/traffic_incident_system/internal/models"
)

const (
	redisQueueKey   = "reporter:candidates"
	redisPopTimeout = time.Second
)

// RedisQueue - ограниченная очередь в списке Redis.
// LPUSH + LTRIM удерживают не более capacity элементов (старые вытесняются с хвоста),
// BRPOP забирает самый старый элемент.
type RedisQueue struct {
	client   *redis.Client
	key      string
	capacity int
	closed   atomic.Bool
}

// NewRedisQueue создает очередь поверх существующего клиента
func NewRedisQueue(client *redis.Client, capacity int) *RedisQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisQueue{
		client:   client,
		key:      redisQueueKey,
		capacity: capacity,
	}
}

func (q *RedisQueue) Push(ctx context.Context, candidate models.IncidentCandidate) (int, error) {
	if q.closed.Load() {
		return 0, ErrQueueClosed
	}

	payload, err := json.Marshal(candidate)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal candidate: %w", err)
	}

	var pushed *redis.IntCmd
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pushed = pipe.LPush(ctx, q.key, payload)
		pipe.LTrim(ctx, q.key, 0, int64(q.capacity-1))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to push candidate to Redis: %w", err)
	}

	if length := int(pushed.Val()); length > q.capacity {
		return length - q.capacity, nil
	}
	return 0, nil
}

func (q *RedisQueue) Pop(ctx context.Context) (models.IncidentCandidate, error) {
	for {
		if q.closed.Load() {
			// После закрытия дочитываем остаток без блокировки
			payload, err := q.client.RPop(ctx, q.key).Result()
			if errors.Is(err, redis.Nil) {
				return models.IncidentCandidate{}, ErrQueueClosed
			}
			if err != nil {
				return models.IncidentCandidate{}, fmt.Errorf("failed to pop candidate from Redis: %w", err)
			}
			return decodeCandidate(payload)
		}

		result, err := q.client.BRPop(ctx, redisPopTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return models.IncidentCandidate{}, ctx.Err()
			}
			return models.IncidentCandidate{}, fmt.Errorf("failed to pop candidate from Redis: %w", err)
		}

		// result[0] - ключ, result[1] - значение
		return decodeCandidate(result[1])
	}
}

func (q *RedisQueue) Len(ctx context.Context) int {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}

func decodeCandidate(payload string) (models.IncidentCandidate, error) {
	var candidate models.IncidentCandidate
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		return models.IncidentCandidate{}, fmt.Errorf("failed to unmarshal candidate from Redis: %w", err)
	}
	return candidate, nil
}
