package session

import (
	"fmt"
	"strings"
	"sync"
)

// Guard is the cycle detector for in-flight loads. Each path is Idle or
// InProgress with the source file that triggered it; the set of in-progress
// entries mirrors the live call stack of loads, so verifying that a new
// load never revisits a path on its own triggering chain is sufficient to
// reject cycles without building a dependency DAG up front.
//
// Two workers loading the same path concurrently is not a cycle: the second
// blocks until the first finishes, then takes the module cache fast path.
// While blocked, the waiting edge participates in the chain walk so a cycle
// split across workers is still rejected rather than deadlocking.
type Guard struct {
	mu      sync.Mutex
	loading map[string]*loadEntry
	waiting map[string][]string
}

// loadEntry marks one in-progress load: the source that triggered it, the
// directory flag, and a channel closed on completion.
type loadEntry struct {
	source string
	dir    bool
	refs   int
	done   chan struct{}
}

func newGuard() *Guard {
	return &Guard{
		loading: make(map[string]*loadEntry),
		waiting: make(map[string][]string),
	}
}

// CycleError reports a self-re-entrant load chain.
type CycleError struct {
	Chain []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic load: %s", strings.Join(e.Chain, " -> "))
}

// Acquire marks target in-progress on behalf of source. Source is empty for
// top-level entry points. The returned release function must run on every
// exit path, success or failure; callers defer it immediately.
//
// Directory targets admit concurrent entries from different sources;
// directory loaders are responsible for skipping already-in-progress
// members. File targets already in progress either form a cycle (rejected)
// or belong to another worker (waited out).
func (g *Guard) Acquire(target, source string, isDir bool) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		entry, inProgress := g.loading[target]
		if !inProgress {
			break
		}

		if isDir && entry.dir {
			entry.refs++
			return func() { g.release(target) }, nil
		}

		if target == source || g.dependsLocked(target, source) {
			return nil, &CycleError{Chain: g.chainLocked(source, target)}
		}

		// Another worker owns this path. Wait for it, then re-check: on its
		// success the caller's cache lookup hits; on failure this worker
		// acquires the entry and retries the evaluation.
		g.waiting[target] = append(g.waiting[target], source)
		done := entry.done
		g.mu.Unlock()
		<-done
		g.mu.Lock()
		g.dropWaiter(target, source)
	}

	g.loading[target] = &loadEntry{
		source: source,
		dir:    isDir,
		refs:   1,
		done:   make(chan struct{}),
	}
	return func() { g.release(target) }, nil
}

// release removes one in-progress mark and wakes waiters once the last
// reference is gone.
func (g *Guard) release(target string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.loading[target]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(g.loading, target)
	close(entry.done)
}

// dependsLocked reports whether the evaluation of from transitively waits
// on the evaluation of on, following both in-progress and waiting edges.
func (g *Guard) dependsLocked(from, on string) bool {
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == on {
			return true
		}
		if cur == "" || seen[cur] {
			continue
		}
		seen[cur] = true
		for loaded, entry := range g.loading {
			if entry.source == cur {
				stack = append(stack, loaded)
			}
		}
		for blockedOn, sources := range g.waiting {
			for _, src := range sources {
				if src == cur {
					stack = append(stack, blockedOn)
				}
			}
		}
	}
	return false
}

// chainLocked reconstructs the load chain for a cycle error message by
// walking triggering sources backwards from source to target.
func (g *Guard) chainLocked(source, target string) []string {
	chain := []string{target}
	if source != target {
		var reversed []string
		cur := source
		for cur != "" && cur != target && len(reversed) < len(g.loading)+1 {
			reversed = append(reversed, cur)
			entry, ok := g.loading[cur]
			if !ok {
				break
			}
			cur = entry.source
		}
		for i := len(reversed) - 1; i >= 0; i-- {
			chain = append(chain, reversed[i])
		}
	}
	return append(chain, target)
}

func (g *Guard) dropWaiter(target, source string) {
	sources := g.waiting[target]
	for i, src := range sources {
		if src == source {
			g.waiting[target] = append(sources[:i], sources[i+1:]...)
			break
		}
	}
	if len(g.waiting[target]) == 0 {
		delete(g.waiting, target)
	}
}

// InProgress reports whether target currently has an in-progress mark.
func (g *Guard) InProgress(target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.loading[target]
	return ok
}
