package resource

import (
	"fmt"
	"sync"

	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
	"transcription-service/pkg/redisclient"
)

var (
	redisResourceOnce      sync.Once
	singletonRedisResource *RedisResource
)

// RedisResource holds the redis connection backing the job queue.
type RedisResource struct {
	client *redisclient.Client
}

// DefaultRedisResource returns the process-wide redis resource.
func DefaultRedisResource() *RedisResource {
	redisResourceOnce.Do(func() {
		singletonRedisResource = &RedisResource{}
	})
	return singletonRedisResource
}

// MustOpen connects to redis and validates the connection.
func (r *RedisResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RedisResource")
	}

	client, err := redisclient.New(cfg.Redis)
	if err != nil {
		panic(fmt.Sprintf("failed to connect redis: %v", err))
	}
	r.client = client

	logger.Info("Redis initialized", map[string]interface{}{
		"addr": cfg.Redis.GetRedisAddr(),
		"db":   cfg.Redis.DB,
	})
}

// GetClient returns the wrapped redis client.
func (r *RedisResource) GetClient() *redisclient.Client {
	return r.client
}

// Close releases pooled connections.
func (r *RedisResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}
