package persistence

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
)

type cachedProject struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// RedisProjectCache shares resolved project keys between import runs.
type RedisProjectCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisProjectCache(client *redis.Client, ttl time.Duration) *RedisProjectCache {
	return &RedisProjectCache{redis: client, prefix: "milestones:import:projects:v1", ttl: ttl}
}

func (c *RedisProjectCache) key(projectKey string) string {
	return c.prefix + ":" + strings.ToLower(strings.TrimSpace(projectKey))
}

func (c *RedisProjectCache) Get(ctx context.Context, projectKey string) (milestone.ProjectRef, bool, error) {
	result, err := c.redis.Get(ctx, c.key(projectKey)).Result()
	if err != nil {
		if err == redis.Nil {
			return milestone.ProjectRef{}, false, nil
		}
		return milestone.ProjectRef{}, false, errors.Wrap(err, "failed to read project cache")
	}
	var model cachedProject
	if err := json.Unmarshal([]byte(result), &model); err != nil {
		return milestone.ProjectRef{}, false, errors.Wrap(err, "failed to decode cached project")
	}
	return milestone.ProjectRef{ID: model.ID, Title: model.Title}, true, nil
}

func (c *RedisProjectCache) Set(ctx context.Context, projectKey string, ref milestone.ProjectRef) error {
	payload, err := json.Marshal(cachedProject{ID: ref.ID, Title: ref.Title})
	if err != nil {
		return errors.Wrap(err, "failed to encode cached project")
	}
	if err := c.redis.Set(ctx, c.key(projectKey), payload, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to write project cache")
	}
	return nil
}
