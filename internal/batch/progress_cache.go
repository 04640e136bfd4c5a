package batch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-issuance/internal/models"
)

// ProgressCache mirrors job progress snapshots so pollers can be served by
// any instance. Best effort: a cache failure never affects the job.
type ProgressCache interface {
	StoreProgress(ctx context.Context, job models.BatchJob) error
}

// RedisProgressCache keeps snapshots under job_progress:<id> with a TTL long
// enough to outlive the download window.
type RedisProgressCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisProgressCache(client *redis.Client) *RedisProgressCache {
	return &RedisProgressCache{Client: client, TTL: 24 * time.Hour}
}

func (c *RedisProgressCache) StoreProgress(ctx context.Context, job models.BatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, "job_progress:"+job.ID, payload, c.TTL).Err()
}
