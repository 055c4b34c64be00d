package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the page cache between browser sessions of the same
// workflow. Each operator's pages live in one hash keyed by page index, so
// invalidation is a single DEL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = "flowcanvas:results"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(operatorID string) string {
	return r.prefix + ":" + operatorID
}

func (r *RedisStore) PutPage(ctx context.Context, operatorID string, pageIndex int, table []Row) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal result page: %w", err)
	}

	if err := r.client.HSet(ctx, r.key(operatorID), strconv.Itoa(pageIndex), data).Err(); err != nil {
		return fmt.Errorf("failed to store result page: %w", err)
	}

	return nil
}

func (r *RedisStore) GetPage(ctx context.Context, operatorID string, pageIndex int) ([]Row, bool, error) {
	data, err := r.client.HGet(ctx, r.key(operatorID), strconv.Itoa(pageIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to load result page: %w", err)
	}

	var table []Row
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal result page: %w", err)
	}

	return table, true, nil
}

func (r *RedisStore) InvalidateOperator(ctx context.Context, operatorID string) error {
	if err := r.client.Del(ctx, r.key(operatorID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate result pages: %w", err)
	}

	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
