// Package vfs abstracts file access behind a small provider interface so the
// engine can run against the real filesystem, an editor's unsaved buffers,
// or an in-memory tree in tests. Providers are injected, never global.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Provider supplies file contents and path identity to the engine.
type Provider interface {
	// ReadFile returns the contents of path.
	ReadFile(path string) ([]byte, error)
	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool
	// IsDir reports whether path names a directory.
	IsDir(path string) bool
	// Canonicalize normalizes path into the stable identity used as the
	// module cache and cycle detection key.
	Canonicalize(path string) (string, error)
	// TrackFile records path as an input of the current build, for
	// provenance bookkeeping (watch lists, lockfile verification).
	TrackFile(path string)
}

// OS is the disk-backed provider.
type OS struct {
	mu      sync.Mutex
	tracked map[string]struct{}
}

// NewOS returns a disk-backed provider.
func NewOS() *OS {
	return &OS{tracked: make(map[string]struct{})}
}

func (p *OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (p *OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *OS) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (p *OS) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", path, err)
	}
	// Resolve symlinks when possible so two spellings of one file share a
	// cache entry; fall back to the cleaned absolute path for files that do
	// not exist yet (e.g. unsaved buffers).
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

func (p *OS) TrackFile(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[path] = struct{}{}
}

// TrackedFiles returns the sorted set of files recorded by TrackFile.
func (p *OS) TrackedFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.tracked))
	for path := range p.tracked {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Mem is an in-memory provider keyed by slash-separated absolute paths. It
// backs tests and virtual editor workspaces.
type Mem struct {
	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]struct{}
	tracked map[string]struct{}
}

// NewMem returns an empty in-memory provider.
func NewMem() *Mem {
	return &Mem{
		files:   make(map[string][]byte),
		dirs:    map[string]struct{}{"/": {}},
		tracked: make(map[string]struct{}),
	}
}

// Write stores contents under path, creating parent directories implicitly.
func (p *Mem) Write(path string, contents []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clean := filepath.ToSlash(filepath.Clean(path))
	p.files[clean] = contents
	for dir := filepath.ToSlash(filepath.Dir(clean)); dir != "/" && dir != "."; dir = filepath.ToSlash(filepath.Dir(dir)) {
		p.dirs[dir] = struct{}{}
	}
}

func (p *Mem) ReadFile(path string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clean := filepath.ToSlash(filepath.Clean(path))
	contents, ok := p.files[clean]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return contents, nil
}

func (p *Mem) Exists(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	clean := filepath.ToSlash(filepath.Clean(path))
	if _, ok := p.files[clean]; ok {
		return true
	}
	_, ok := p.dirs[clean]
	return ok
}

func (p *Mem) IsDir(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.dirs[filepath.ToSlash(filepath.Clean(path))]
	return ok
}

func (p *Mem) Canonicalize(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("canonicalize %q: in-memory paths must be absolute", path)
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}

func (p *Mem) TrackFile(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[path] = struct{}{}
}

// TrackedFiles returns the sorted set of files recorded by TrackFile.
func (p *Mem) TrackedFiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.tracked))
	for path := range p.tracked {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
