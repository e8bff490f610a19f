package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

const (
	entryKeyPrefix = "checkpoint:entry:"
	stateKeyPrefix = "checkpoint:state:"
	scanBatchSize  = 100
)

// RedisStore keeps checkpoints as JSON strings in Redis. Keys never expire.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.CheckpointEntry, error) {
	var entry domain.CheckpointEntry
	found, err := r.getJSON(ctx, entryKeyPrefix+id, &entry)
	if err != nil || !found {
		return nil, err
	}
	return &entry, nil
}

func (r *RedisStore) Put(ctx context.Context, entry domain.CheckpointEntry) error {
	return r.setJSON(ctx, entryKeyPrefix+entry.ItemID, entry)
}

// List returns every entry ordered by item ID.
func (r *RedisStore) List(ctx context.Context) ([]domain.CheckpointEntry, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, entryKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan checkpoints", err)
	}
	if len(keys) == 0 {
		return []domain.CheckpointEntry{}, nil
	}

	sort.Slice(keys, func(i, j int) bool {
		return strings.TrimPrefix(keys[i], entryKeyPrefix) < strings.TrimPrefix(keys[j], entryKeyPrefix)
	})

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("list checkpoints", err)
	}

	entries := make([]domain.CheckpointEntry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e domain.CheckpointEntry
		if json.Unmarshal([]byte(s), &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, entryKeyPrefix+id).Err(); err != nil {
		return unavailable("delete checkpoint "+id, err)
	}
	return nil
}

func (r *RedisStore) LoadState(ctx context.Context, id string) (*domain.PublishState, error) {
	var state domain.PublishState
	found, err := r.getJSON(ctx, stateKeyPrefix+id, &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

func (r *RedisStore) SaveState(ctx context.Context, state domain.PublishState) error {
	return r.setJSON(ctx, stateKeyPrefix+state.ItemID, state)
}

func (r *RedisStore) DeleteState(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, stateKeyPrefix+id).Err(); err != nil {
		return unavailable("delete publish state "+id, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping checkpoint redis", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, unavailable("get "+key, err)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err = r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return unavailable("set "+key, err)
	}
	return nil
}
