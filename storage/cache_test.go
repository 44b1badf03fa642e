package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Manimaran10/task-manager/domain"
)

type stubBackend struct {
	createTaskFn     func(ctx context.Context, t domain.Task) error
	findTaskFn       func(ctx context.Context, id string) (domain.Task, error)
	updateTaskFn     func(ctx context.Context, id string, upd domain.TaskUpdate) error
	deleteTaskFn     func(ctx context.Context, id string) error
	findUserTasksFn  func(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error)
	dashboardStatsFn func(ctx context.Context, userID string) (domain.DashboardStats, error)
}

func (s *stubBackend) CreateTask(ctx context.Context, task domain.Task) error {
	if s.createTaskFn == nil {
		return errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, task)
}

func (s *stubBackend) FindTask(ctx context.Context, id string) (domain.Task, error) {
	if s.findTaskFn == nil {
		return domain.Task{}, errors.New("unexpected FindTask call")
	}
	return s.findTaskFn(ctx, id)
}

func (s *stubBackend) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	if s.updateTaskFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, id, upd)
}

func (s *stubBackend) DeleteTask(ctx context.Context, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, id)
}

func (s *stubBackend) FindUserTasks(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
	if s.findUserTasksFn == nil {
		return nil, 0, errors.New("unexpected FindUserTasks call")
	}
	return s.findUserTasksFn(ctx, userID, filter, opts)
}

func (s *stubBackend) DashboardStats(ctx context.Context, userID string) (domain.DashboardStats, error) {
	if s.dashboardStatsFn == nil {
		return domain.DashboardStats{}, errors.New("unexpected DashboardStats call")
	}
	return s.dashboardStatsFn(ctx, userID)
}

func newTestCache(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheFindUserTasksMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", Title: "Write code", CreatorID: "u1", AssigneeID: "u2"}}

	var calls int
	cache, _ := newTestCache(t, &stubBackend{
		findUserTasksFn: func(ctx context.Context, uid string, _ domain.TaskFilter, _ domain.ListOptions) ([]domain.Task, int64, error) {
			calls++
			if uid != "u1" {
				t.Fatalf("unexpected user id: %s", uid)
			}
			return append([]domain.Task(nil), expected...), 1, nil
		},
	})

	tasks, total, err := cache.FindUserTasks(ctx, "u1", domain.TaskFilter{}, domain.ListOptions{})
	if err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if total != 1 || !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected page: total=%d tasks=%#v", total, tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}

	if _, _, err := cache.FindUserTasks(ctx, "u1", domain.TaskFilter{}, domain.ListOptions{}); err != nil {
		t.Fatalf("cached find tasks: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached read to avoid backend, calls=%d", calls)
	}
}

func TestCacheDistinctFiltersGetDistinctEntries(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache, _ := newTestCache(t, &stubBackend{
		findUserTasksFn: func(ctx context.Context, uid string, f domain.TaskFilter, _ domain.ListOptions) ([]domain.Task, int64, error) {
			calls++
			return nil, 0, nil
		},
	})

	if _, _, err := cache.FindUserTasks(ctx, "u1", domain.TaskFilter{}, domain.ListOptions{}); err != nil {
		t.Fatalf("find tasks: %v", err)
	}
	if _, _, err := cache.FindUserTasks(ctx, "u1", domain.TaskFilter{Status: domain.StatusTodo}, domain.ListOptions{}); err != nil {
		t.Fatalf("find filtered tasks: %v", err)
	}
	if calls != 2 {
		t.Fatalf("distinct filters must not share entries, calls=%d", calls)
	}
}

func TestCacheEvictsBothUsersOnUpdate(t *testing.T) {
	ctx := context.Background()
	prev := domain.Task{ID: "t1", CreatorID: "creator", AssigneeID: "old"}
	newAssignee := "new"

	var listCalls int
	cache, _ := newTestCache(t, &stubBackend{
		findTaskFn: func(ctx context.Context, id string) (domain.Task, error) { return prev, nil },
		updateTaskFn: func(ctx context.Context, id string, upd domain.TaskUpdate) error {
			return nil
		},
		findUserTasksFn: func(ctx context.Context, uid string, _ domain.TaskFilter, _ domain.ListOptions) ([]domain.Task, int64, error) {
			listCalls++
			return nil, 0, nil
		},
	})

	for _, uid := range []string{"creator", "old", "new"} {
		if _, _, err := cache.FindUserTasks(ctx, uid, domain.TaskFilter{}, domain.ListOptions{}); err != nil {
			t.Fatalf("warm cache for %s: %v", uid, err)
		}
	}
	if listCalls != 3 {
		t.Fatalf("expected 3 warming calls, got %d", listCalls)
	}

	if err := cache.UpdateTask(ctx, "t1", domain.TaskUpdate{AssigneeID: &newAssignee}); err != nil {
		t.Fatalf("update task: %v", err)
	}

	for _, uid := range []string{"creator", "old", "new"} {
		if _, _, err := cache.FindUserTasks(ctx, uid, domain.TaskFilter{}, domain.ListOptions{}); err != nil {
			t.Fatalf("re-read for %s: %v", uid, err)
		}
	}
	if listCalls != 6 {
		t.Fatalf("expected all three users evicted, calls=%d", listCalls)
	}
}

func TestCacheDashboardStatsEvictedOnCreate(t *testing.T) {
	ctx := context.Background()
	var statCalls int
	cache, _ := newTestCache(t, &stubBackend{
		createTaskFn: func(ctx context.Context, task domain.Task) error { return nil },
		dashboardStatsFn: func(ctx context.Context, uid string) (domain.DashboardStats, error) {
			statCalls++
			return domain.DashboardStats{TotalTasks: statCalls}, nil
		},
	})

	if _, err := cache.DashboardStats(ctx, "u1"); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if _, err := cache.DashboardStats(ctx, "u1"); err != nil {
		t.Fatalf("cached dashboard: %v", err)
	}
	if statCalls != 1 {
		t.Fatalf("expected cached dashboard read, calls=%d", statCalls)
	}

	if err := cache.CreateTask(ctx, domain.Task{ID: "t1", CreatorID: "u1", AssigneeID: "u2"}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	stats, err := cache.DashboardStats(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard after create: %v", err)
	}
	if stats.TotalTasks != 2 {
		t.Fatalf("expected recomputed stats after eviction, got %+v", stats)
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache, mr := newTestCache(t, &stubBackend{
		findUserTasksFn: func(ctx context.Context, uid string, _ domain.TaskFilter, _ domain.ListOptions) ([]domain.Task, int64, error) {
			calls++
			return nil, 0, nil
		},
	})

	key := tasksCacheKey("u1", domain.TaskFilter{}, domain.ListOptions{}.Normalize())
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, _, err := cache.FindUserTasks(ctx, "u1", domain.TaskFilter{}, domain.ListOptions{}); err != nil {
		t.Fatalf("find tasks with corrupt cache: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fallback to backend, calls=%d", calls)
	}
}
