// Package resolver maps load-path strings from zen source onto canonical
// file paths. The concrete strategy is injected into the evaluator so that
// registry lookups, vendoring schemes, and virtual filesystems can be
// swapped without touching the loading engine.
package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/zenhdl/zenit/internal/vfs"
)

// Resolved is the outcome of a successful resolution. Advisory, when
// non-empty, is a non-fatal policy finding the caller records as a warning
// on the current file.
type Resolved struct {
	Path     string
	Advisory string
}

// Resolver maps a raw load path, relative to the file containing the load
// statement, onto a canonical path.
type Resolver interface {
	Resolve(loadPath, currentFile string) (Resolved, error)
	// TrackFile records a resolved file as a build input.
	TrackFile(path string)
}

// Relative resolves load paths against the loading file's directory.
// Paths of the form "@name/..." resolve under VendorRoot, standing in for
// the package registry. A trailing "@version" pin is stripped before
// resolution and checked by the pin policy.
type Relative struct {
	Files      vfs.Provider
	VendorRoot string
}

// NewRelative returns a resolver reading through files, with vendored
// packages rooted at vendorRoot (may be empty when no registry is in use).
func NewRelative(files vfs.Provider, vendorRoot string) *Relative {
	return &Relative{Files: files, VendorRoot: vendorRoot}
}

// Resolve implements Resolver.
func (r *Relative) Resolve(loadPath, currentFile string) (Resolved, error) {
	if loadPath == "" {
		return Resolved{}, fmt.Errorf("empty load path")
	}

	raw, pin := splitPin(loadPath)
	advisory := checkPin(loadPath, pin)

	var candidate string
	switch {
	case strings.HasPrefix(raw, "@"):
		if r.VendorRoot == "" {
			return Resolved{}, fmt.Errorf("package path %q used without a vendor root", raw)
		}
		candidate = filepath.Join(r.VendorRoot, strings.TrimPrefix(raw, "@"))
	case filepath.IsAbs(raw):
		candidate = raw
	default:
		candidate = filepath.Join(filepath.Dir(currentFile), raw)
	}

	// A bare path may omit the extension; prefer the exact spelling.
	if !r.Files.Exists(candidate) && path.Ext(raw) == "" && r.Files.Exists(candidate+".zen") {
		candidate += ".zen"
	}
	if !r.Files.Exists(candidate) {
		return Resolved{}, fmt.Errorf("no file at %q", candidate)
	}

	canonical, err := r.Files.Canonicalize(candidate)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Path: canonical, Advisory: advisory}, nil
}

// TrackFile implements Resolver.
func (r *Relative) TrackFile(p string) {
	r.Files.TrackFile(p)
}
