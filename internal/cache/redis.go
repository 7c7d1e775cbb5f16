package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/backstage/services/logistics/config"
	"example.com/backstage/services/logistics/internal/model"
)

// CacheClient defines the interface for cache operations
type CacheClient interface {
	// Load caching methods
	GetLoad(ctx context.Context, id uint) (*model.Load, error)
	SetLoad(ctx context.Context, load *model.Load) error
	DeleteLoad(ctx context.Context, id uint) error

	// IncrementVehicleTripCount bumps the completed-trip counter used by
	// maintenance scheduling
	IncrementVehicleTripCount(ctx context.Context, vehicleID uint) (int64, error)

	// Clear all cache
	FlushAll(ctx context.Context) error
}

// RedisClient implements CacheClient using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client. With caching disabled in the
// configuration every read misses and every write is a no-op.
func NewRedisClient(cfg config.RedisConfig) (CacheClient, error) {
	if !cfg.Enabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     time.Hour,
	}, nil
}

func loadKey(id uint) string {
	return fmt.Sprintf("load:%d", id)
}

func vehicleTripsKey(id uint) string {
	return fmt.Sprintf("vehicle_trips:%d", id)
}

// GetLoad retrieves a load from cache
func (c *RedisClient) GetLoad(ctx context.Context, id uint) (*model.Load, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, loadKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	var load model.Load
	if err := json.Unmarshal(data, &load); err != nil {
		return nil, err
	}
	return &load, nil
}

// SetLoad caches a load
func (c *RedisClient) SetLoad(ctx context.Context, load *model.Load) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(load)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, loadKey(load.ID), data, c.ttl).Err()
}

// DeleteLoad removes a load from cache
func (c *RedisClient) DeleteLoad(ctx context.Context, id uint) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, loadKey(id)).Err()
}

// IncrementVehicleTripCount bumps a vehicle's completed-trip counter
func (c *RedisClient) IncrementVehicleTripCount(ctx context.Context, vehicleID uint) (int64, error) {
	if !c.enabled {
		return 0, nil
	}
	return c.client.Incr(ctx, vehicleTripsKey(vehicleID)).Result()
}

// FlushAll clears all cache
func (c *RedisClient) FlushAll(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.FlushAll(ctx).Err()
}
