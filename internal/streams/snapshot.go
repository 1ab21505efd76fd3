package streams

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// snapshotKeyPrefix namespaces calculator engine snapshots so they don't
// collide with candle/indicator/signal keys.
const snapshotKeyPrefix = "calc:snapshot:"

// SnapshotStore persists calculator engine snapshots as raw JSON, grounded
// on the teacher's Reader.ReadSnapshot/WriteSnapshot. Implements
// model.SnapshotStore.
type SnapshotStore struct {
	c *Client
}

func NewSnapshotStore(c *Client) *SnapshotStore { return &SnapshotStore{c: c} }

func (s *SnapshotStore) SaveSnapshotJSON(ctx context.Context, key string, data []byte) error {
	return s.c.rdb.Set(ctx, snapshotKeyPrefix+key, string(data), 0).Err()
}

func (s *SnapshotStore) ReadLatestSnapshotJSON(ctx context.Context, key string) ([]byte, error) {
	data, err := s.c.rdb.Get(ctx, snapshotKeyPrefix+key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot %s: %w", key, err)
	}
	return []byte(data), nil
}
