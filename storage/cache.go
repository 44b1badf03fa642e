package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Manimaran10/task-manager/domain"
)

type backend interface {
	CreateTask(ctx context.Context, t domain.Task) error
	FindTask(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	FindUserTasks(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error)
	DashboardStats(ctx context.Context, userID string) (domain.DashboardStats, error)
}

// Cache wraps a Store with Redis-backed caching for task listings and dashboard
// reads, evicting the affected users' entries on every mutation.
type Cache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{base: base, redis: client, ttl: ttl}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

type cachedPage struct {
	Tasks []domain.Task `json:"tasks"`
	Total int64         `json:"total"`
}

func (c *Cache) FindUserTasks(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
	key := tasksCacheKey(userID, filter, opts.Normalize())
	if page, ok := c.loadPage(ctx, key); ok {
		return page.Tasks, page.Total, nil
	}

	tasks, total, err := c.base.FindUserTasks(ctx, userID, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	c.store(ctx, userID, key, cachedPage{Tasks: tasks, Total: total})
	return tasks, total, nil
}

func (c *Cache) DashboardStats(ctx context.Context, userID string) (domain.DashboardStats, error) {
	key := dashCacheKey(userID)
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
			var stats domain.DashboardStats
			if err := json.Unmarshal(data, &stats); err == nil {
				return stats, nil
			}
			_ = c.redis.Del(ctx, key).Err()
		}
	}

	stats, err := c.base.DashboardStats(ctx, userID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	if data, err := json.Marshal(stats); err == nil {
		c.storeRaw(ctx, userID, key, data)
	}
	return stats, nil
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.CreateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.CreatorID, t.AssigneeID)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	// Read the pre-image so the previous assignee's entries are evicted too.
	prev, err := c.base.FindTask(ctx, id)
	if err != nil {
		return err
	}
	if err := c.base.UpdateTask(ctx, id, upd); err != nil {
		return err
	}
	affected := []string{prev.CreatorID, prev.AssigneeID}
	if upd.AssigneeID != nil {
		affected = append(affected, *upd.AssigneeID)
	}
	c.evict(ctx, affected...)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	prev, err := c.base.FindTask(ctx, id)
	if err != nil {
		return err
	}
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, prev.CreatorID, prev.AssigneeID)
	return nil
}

func (c *Cache) loadPage(ctx context.Context, key string) (cachedPage, bool) {
	if c.redis == nil {
		return cachedPage{}, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return cachedPage{}, false
	}
	var page cachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return cachedPage{}, false
	}
	return page, true
}

func (c *Cache) store(ctx context.Context, userID, key string, page cachedPage) {
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	c.storeRaw(ctx, userID, key, data)
}

func (c *Cache) storeRaw(ctx context.Context, userID, key string, data []byte) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	pipe := c.redis.Pipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, keySetKey(userID), key)
	pipe.Expire(ctx, keySetKey(userID), c.ttl)
	_, _ = pipe.Exec(ctx)
}

// evict drops every cached entry belonging to the given users.
func (c *Cache) evict(ctx context.Context, userIDs ...string) {
	if c.redis == nil {
		return
	}
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys, err := c.redis.SMembers(ctx, keySetKey(id)).Result()
		if err != nil {
			continue
		}
		keys = append(keys, keySetKey(id))
		_, _ = c.redis.Del(ctx, keys...).Result()
	}
}

func tasksCacheKey(userID string, f domain.TaskFilter, o domain.ListOptions) string {
	return fmt.Sprintf("tasks:%s:%s|%s|%t|%t|%t|%s|%s|%d|%d",
		userID, f.Status, f.Priority, f.Assigned, f.Created, f.Overdue,
		o.SortBy, o.SortOrder, o.Page, o.Limit)
}

func dashCacheKey(userID string) string {
	return "dash:" + userID
}

func keySetKey(userID string) string {
	return "ckeys:" + userID
}
