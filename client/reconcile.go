package client

import (
	"math"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/domain"
)

// Cache key prefixes the reconciler patches. "tasks" covers every task list
// query regardless of its filter suffix.
const (
	taskQueryPrefix      = "tasks"
	dashboardQueryPrefix = "dashboard"
)

// Reconciler folds push events into a QueryCache so cached task lists stay
// current without a refetch. Every apply method is idempotent: replaying the
// same event leaves the cache unchanged, and events touching tasks absent
// from the cache are no-ops.
type Reconciler struct {
	cache *QueryCache

	// OnAssigned, when set, is called for each task:assigned event after the
	// cache has been marked stale. Used to surface in-app notifications.
	OnAssigned func(domain.AssignedPayload)
}

func NewReconciler(cache *QueryCache) *Reconciler {
	return &Reconciler{cache: cache}
}

// Apply dispatches one wire frame to the matching handler. Frames with
// unknown kinds or undecodable payloads are logged and skipped, never fatal.
func (r *Reconciler) Apply(ev domain.Event) {
	switch ev.Event {
	case domain.TaskCreated:
		task, err := decodeObject(ev.Data)
		if err != nil {
			log.WithError(err).WithField("event", ev.Event).Warn("skipping undecodable event")
			return
		}
		r.ApplyCreated(task)
	case domain.TaskUpdated:
		task, err := decodeObject(ev.Data)
		if err != nil {
			log.WithError(err).WithField("event", ev.Event).Warn("skipping undecodable event")
			return
		}
		r.ApplyUpdated(task)
	case domain.TaskDeleted:
		var p domain.DeletedPayload
		if err := sonic.ConfigStd.Unmarshal(ev.Data, &p); err != nil || p.TaskID == "" {
			log.WithField("event", ev.Event).Warn("skipping undecodable event")
			return
		}
		r.ApplyDeleted(p.TaskID)
	case domain.TaskAssigned:
		var p domain.AssignedPayload
		if err := sonic.ConfigStd.Unmarshal(ev.Data, &p); err != nil {
			log.WithError(err).WithField("event", ev.Event).Warn("skipping undecodable event")
			return
		}
		r.ApplyAssigned(p)
	default:
		log.WithField("event", ev.Event).Debug("ignoring unknown event kind")
	}
}

// ApplyCreated prepends the task to every cached task list that does not
// already contain it and bumps the dashboard counters.
func (r *Reconciler) ApplyCreated(task map[string]any) {
	id, ok := taskID(task)
	if !ok {
		return
	}
	changed := false
	for _, key := range r.cache.Keys(taskQueryPrefix) {
		r.cache.update(key, func(v any) any {
			list, rebuild, ok := taskList(v)
			if !ok {
				return v
			}
			if indexOf(list, id) >= 0 {
				return v
			}
			changed = true
			next := make([]any, 0, len(list)+1)
			next = append(next, task)
			next = append(next, list...)
			return rebuild(next)
		})
	}
	if !changed {
		// Replayed event or no cached lists; a stale flag is enough.
		r.cache.MarkStale(dashboardQueryPrefix)
		return
	}
	r.adjustDashboards(func(stats map[string]any) {
		addTo(stats, "totalTasks", 1)
		if status, _ := task["status"].(string); status == "in_progress" {
			addTo(stats, "inProgressTasks", 1)
		}
	})
}

// ApplyUpdated merges the fresh snapshot over the matching cached entry in
// every task list. Lists not containing the task are untouched; ordering is
// preserved.
func (r *Reconciler) ApplyUpdated(task map[string]any) {
	id, ok := taskID(task)
	if !ok {
		return
	}
	for _, key := range r.cache.Keys(taskQueryPrefix) {
		r.cache.update(key, func(v any) any {
			list, rebuild, ok := taskList(v)
			if !ok {
				return v
			}
			idx := indexOf(list, id)
			if idx < 0 {
				return v
			}
			old, _ := list[idx].(map[string]any)
			merged := make(map[string]any, len(old)+len(task))
			for k, val := range old {
				merged[k] = val
			}
			for k, val := range task {
				merged[k] = val
			}
			next := make([]any, len(list))
			copy(next, list)
			next[idx] = merged
			return rebuild(next)
		})
	}
	// Status moves change the counters in ways the event alone cannot settle,
	// so the dashboard falls back to a refetch.
	r.cache.MarkStale(dashboardQueryPrefix)
}

// ApplyDeleted removes the task from every cached list. Deleting an id that
// no list holds is a no-op.
func (r *Reconciler) ApplyDeleted(taskID string) {
	changed := false
	for _, key := range r.cache.Keys(taskQueryPrefix) {
		r.cache.update(key, func(v any) any {
			list, rebuild, ok := taskList(v)
			if !ok {
				return v
			}
			idx := indexOf(list, taskID)
			if idx < 0 {
				return v
			}
			changed = true
			next := make([]any, 0, len(list)-1)
			next = append(next, list[:idx]...)
			next = append(next, list[idx+1:]...)
			return rebuild(next)
		})
	}
	if !changed {
		return
	}
	r.adjustDashboards(func(stats map[string]any) {
		addTo(stats, "totalTasks", -1)
	})
}

// ApplyAssigned marks task and dashboard queries stale, then hands the
// payload to the notification callback.
func (r *Reconciler) ApplyAssigned(p domain.AssignedPayload) {
	r.cache.MarkStale(taskQueryPrefix)
	r.cache.MarkStale(dashboardQueryPrefix)
	if r.OnAssigned != nil {
		r.OnAssigned(p)
	}
}

// adjustDashboards applies fn to the stats object of every cached dashboard,
// recomputes the completion rate and still marks the entry stale so the next
// fetch reconciles the approximation.
func (r *Reconciler) adjustDashboards(fn func(stats map[string]any)) {
	for _, key := range r.cache.Keys(dashboardQueryPrefix) {
		r.cache.update(key, func(v any) any {
			stats, ok := v.(map[string]any)
			if !ok {
				return v
			}
			fn(stats)
			total := intField(stats, "totalTasks")
			completed := intField(stats, "completedTasks")
			stats["completionRate"] = float64(domain.CompletionRate(completed, total))
			return stats
		})
	}
	r.cache.MarkStale(dashboardQueryPrefix)
}

func decodeObject(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := sonic.ConfigStd.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// taskList pulls the task slice out of a cached response. Three shapes are
// recognized: a bare array, and envelopes with a "tasks" or "data" array.
// The rebuild function produces the same shape around a replacement slice.
func taskList(v any) ([]any, func([]any) any, bool) {
	switch resp := v.(type) {
	case []any:
		return resp, func(next []any) any { return next }, true
	case map[string]any:
		for _, field := range []string{"tasks", "data"} {
			if list, ok := resp[field].([]any); ok {
				f := field
				return list, func(next []any) any {
					out := make(map[string]any, len(resp))
					for k, val := range resp {
						out[k] = val
					}
					out[f] = next
					return out
				}, true
			}
		}
	}
	return nil, nil, false
}

func taskID(task map[string]any) (string, bool) {
	id, ok := task["id"].(string)
	return id, ok && id != ""
}

func indexOf(list []any, id string) int {
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if got, _ := entry["id"].(string); got == id {
			return i
		}
	}
	return -1
}

// Decoded JSON numbers arrive as float64; counters never go below zero.
func addTo(stats map[string]any, field string, delta int) {
	n, ok := stats[field].(float64)
	if !ok {
		return
	}
	stats[field] = math.Max(0, n+float64(delta))
}

func intField(stats map[string]any, field string) int {
	n, _ := stats[field].(float64)
	return int(n)
}
