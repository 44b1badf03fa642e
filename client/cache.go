// Package client implements the browser-side half of the push channel: a query
// cache holding decoded server responses and a reconciler that folds incoming
// task events into those cached responses without refetching.
package client

import (
	"strings"
	"sync"
)

// QueryCache stores decoded JSON responses keyed by query name. Values are the
// generic decoded forms (map[string]any, []any) so the reconciler can patch
// them regardless of the exact response shape. A key may additionally be
// marked stale, which tells the owner to refetch on next access while still
// serving the old value in the meantime.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]any
	stale   map[string]bool
}

func NewQueryCache() *QueryCache {
	return &QueryCache{
		entries: map[string]any{},
		stale:   map[string]bool{},
	}
}

// Set stores a freshly fetched value and clears any stale flag on the key.
func (qc *QueryCache) Set(key string, value any) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.entries[key] = value
	delete(qc.stale, key)
}

func (qc *QueryCache) Get(key string) (any, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	v, ok := qc.entries[key]
	return v, ok
}

func (qc *QueryCache) Delete(key string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	delete(qc.entries, key)
	delete(qc.stale, key)
}

// Keys returns every cached key starting with prefix, pass "" for all keys.
func (qc *QueryCache) Keys(prefix string) []string {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	var keys []string
	for k := range qc.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// MarkStale flags every key under prefix for refetch without dropping the
// cached value.
func (qc *QueryCache) MarkStale(prefix string) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	for k := range qc.entries {
		if strings.HasPrefix(k, prefix) {
			qc.stale[k] = true
		}
	}
}

func (qc *QueryCache) IsStale(key string) bool {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.stale[key]
}

// update applies fn to the value under key while holding the write lock. fn
// returns the replacement value.
func (qc *QueryCache) update(key string, fn func(any) any) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	v, ok := qc.entries[key]
	if !ok {
		return
	}
	qc.entries[key] = fn(v)
}
