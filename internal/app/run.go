package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/zenhdl/zenit/internal/ctxlog"
	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/fsutil"
	"github.com/zenhdl/zenit/internal/lang"
	"github.com/zenhdl/zenit/internal/netlist"
	"github.com/zenhdl/zenit/internal/schema"
)

// result pairs one top-level file with its evaluation outcome.
type result struct {
	path   string
	module *lang.Module
	diags  diag.Diagnostics
}

// Run evaluates every top-level file under the configured path and renders
// diagnostics and netlist summaries. It returns an error when any file
// produced an error diagnostic; warnings alone do not fail the build.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	paths, err := a.topLevelFiles()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .zen files found at %q", a.config.Path)
	}
	a.logger.Info("Build started.", "files", len(paths), "workers", a.config.Workers)

	results := a.evaluateAll(ctx, paths)

	failed := 0
	for _, res := range results {
		renderDiagnostics(a.errW, res.diags)
		if res.diags.HasErrors() || res.module == nil {
			failed++
			continue
		}
		a.renderModule(res.path, res.module)
	}

	a.logger.Info("Build finished.",
		"files", len(paths),
		"failed", failed,
		"modules_cached", a.session.Cache().Len(),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// topLevelFiles expands the configured path into the files to evaluate.
func (a *App) topLevelFiles() ([]string, error) {
	if strings.HasSuffix(a.config.Path, fsutil.ZenExt) {
		return []string{a.config.Path}, nil
	}
	return fsutil.FindZenFiles(a.config.Path)
}

// evaluateAll runs the worker pool. Workers share the session's module
// cache and load guard, so a module reachable from several top-level files
// is evaluated once; each file's diagnostics stay with its own result.
func (a *App) evaluateAll(ctx context.Context, paths []string) []result {
	workers := a.config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	results := make([]result, len(paths))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				mod, diags := a.evaluator.EvalFile(ctx, paths[i])
				results[i] = result{path: paths[i], module: mod, diags: diags}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// renderModule prints a module's captured output and its netlist summary,
// or the parameter signature in describe mode.
func (a *App) renderModule(path string, mod *lang.Module) {
	if a.config.Describe {
		if err := renderSignature(a.outW, path, mod); err != nil {
			a.logger.Error("Failed to render module signature.", "path", path, "error", err)
		}
		return
	}
	for _, line := range mod.PrintOutput {
		fmt.Fprintln(a.outW, line)
	}
	renderNetlist(a.outW, path, netlist.Build(mod))
}

// renderSignature writes the module's declared io/config inputs as JSON, the
// form registry search and IDE completion consume.
func renderSignature(w io.Writer, path string, mod *lang.Module) error {
	infos, err := schema.Signature(mod.Params)
	if err != nil {
		return err
	}
	doc := struct {
		Path       string                 `json:"path"`
		Name       string                 `json:"name"`
		Parameters []schema.ParameterInfo `json:"parameters"`
	}{
		Path:       path,
		Name:       mod.Name(),
		Parameters: infos,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
