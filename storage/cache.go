package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"prism-board/domain"
)

type backend interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	UpdateTask(ctx context.Context, u domain.Update, idempotencyKey string) error
}

// Cache wraps a task API backend with a Redis snapshot of the user's task
// list. Every update attempt evicts the snapshot.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	scope string
}

// NewCache creates a cache for one user scope. A nil client or zero TTL
// disables caching while keeping the backend reachable.
func NewCache(base backend, client *redis.Client, ttl time.Duration, scope string) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, scope: scope}
}

func (c *Cache) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasks(ctx); ok {
		return tasks, nil
	}

	tasks, err := c.base.FetchTasks(ctx)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, tasks)
	return tasks, nil
}

func (c *Cache) UpdateTask(ctx context.Context, u domain.Update, idempotencyKey string) error {
	err := c.base.UpdateTask(ctx, u, idempotencyKey)
	c.Invalidate(ctx)
	return err
}

// Invalidate drops the cached snapshot so the next fetch hits the backend.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, tasksCacheKey(c.scope)).Err()
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil || c.ttl == 0 {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(c.scope)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backend without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(c.scope)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(c.scope)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(c.scope), data, c.ttl).Err()
}

func tasksCacheKey(scope string) string {
	return "board:tasks:" + scope
}
