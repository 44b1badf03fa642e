package realtime

import (
	"sort"
	"sync"
	"testing"
)

func TestRegistryResolveMultipleSessions(t *testing.T) {
	reg := NewRegistry()
	reg.Register("c1", "user1")
	reg.Register("c2", "user1")
	reg.Register("c3", "user2")

	ids := reg.Resolve("user1")
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("expected both sessions resolved, got %v", ids)
	}
	if got := reg.Resolve("user3"); got != nil {
		t.Fatalf("unknown user should resolve to nothing, got %v", got)
	}
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("c1", "user1")

	reg.Unregister("c1")
	reg.Unregister("c1")
	reg.Unregister("never-registered")

	if n := reg.Count(); n != 0 {
		t.Fatalf("expected empty registry, got %d connections", n)
	}
	if got := reg.Resolve("user1"); got != nil {
		t.Fatalf("unregistered connection still resolvable: %v", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a'+n%26)) + "-conn"
			reg.Register(id, "user1")
			reg.Resolve("user1")
			reg.Unregister(id)
		}(i)
	}
	wg.Wait()
	if got := reg.Resolve("user1"); got != nil {
		t.Fatalf("expected no connections left, got %v", got)
	}
}
