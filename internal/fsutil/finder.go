// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ZenExt is the source file extension the toolchain evaluates.
const ZenExt = ".zen"

// FindZenFiles recursively collects every .zen file under rootPath, in
// walk order. Vendor trees are skipped: vendored modules are reached
// through load paths, not evaluated as top-level files.
func FindZenFiles(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "vendor" && path != rootPath {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ZenExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %q: %w", rootPath, err)
	}
	return files, nil
}
