// Package session reifies the shared state of one build: the module cache,
// the in-flight load guard, and the open-files map. A Session is created per
// build and injected into every evaluation, so independent builds inside a
// long-lived process (IDE, daemon) stay isolated from each other.
package session

import (
	"sync"

	"github.com/zenhdl/zenit/internal/lang"
)

// Session is the shared state of one build. Multiple top-level evaluations
// may use one Session concurrently; all mutation is internally synchronized.
type Session struct {
	cache *Cache
	guard *Guard

	mu        sync.Mutex
	openFiles map[string][]byte
}

// New returns an empty build session.
func New() *Session {
	return &Session{
		cache:     newCache(),
		guard:     newGuard(),
		openFiles: make(map[string][]byte),
	}
}

// Cache returns the session's module cache.
func (s *Session) Cache() *Cache { return s.cache }

// Guard returns the session's load guard.
func (s *Session) Guard() *Guard { return s.guard }

// SetOpenFile installs source text for a canonical path, overriding disk
// contents for the rest of the build. Editors use this for unsaved buffers.
func (s *Session) SetOpenFile(path string, contents []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openFiles[path] = contents
}

// OpenFile returns the recorded source text for a canonical path, if any.
// Nested loads of an already-read path observe the same text for the whole
// build rather than re-reading possibly changed disk contents.
func (s *Session) OpenFile(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents, ok := s.openFiles[path]
	return contents, ok
}

// RememberFile records disk contents for a path unless an override is
// already present. The override always wins.
func (s *Session) RememberFile(path string, contents []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openFiles[path]; !ok {
		s.openFiles[path] = contents
	}
}

// Cache is the canonical-path → evaluated-module map. Only fully evaluated
// modules are inserted, so partially completed work is never visible, and
// failed evaluations stay absent and may be retried.
type Cache struct {
	mu      sync.RWMutex
	modules map[string]*lang.Module
}

func newCache() *Cache {
	return &Cache{modules: make(map[string]*lang.Module)}
}

// Get returns the cached module for path, if present.
func (c *Cache) Get(path string) (*lang.Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mod, ok := c.modules[path]
	return mod, ok
}

// Put inserts a fully evaluated module. The load guard keeps two
// evaluations of one path from racing, so Put is write-once in practice;
// a duplicate insert keeps the first module to preserve type identity.
func (c *Cache) Put(path string, mod *lang.Module) *lang.Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.modules[path]; ok {
		return existing
	}
	c.modules[path] = mod
	return mod
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}
