// Package rediscache caches derived compliance snapshots in Redis. Snapshots
// are disposable, so every failure mode degrades to a cache miss.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"attest/internal/domain"
	"attest/internal/ports"
)

type Cache struct {
	client *redis.Client
}

var _ ports.SnapshotCache = (*Cache)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Close() error { return c.client.Close() }

func key(entityID string) string { return "attest:snapshot:" + entityID }

func (c *Cache) GetSnapshot(ctx context.Context, entityID string) (domain.ComplianceSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, key(entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ComplianceSnapshot{}, false, nil
	}
	if err != nil {
		return domain.ComplianceSnapshot{}, false, err
	}
	var snap domain.ComplianceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry is a miss; it will be overwritten on recompute.
		return domain.ComplianceSnapshot{}, false, nil
	}
	return snap, true, nil
}

func (c *Cache) PutSnapshot(ctx context.Context, snap domain.ComplianceSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(snap.EntityID), raw, ttl).Err()
}
