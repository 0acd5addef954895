package eval

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/zenhdl/zenit/internal/ctxlog"
	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
	"github.com/zenhdl/zenit/internal/session"
)

// loadModule resolves and evaluates one load() target. The returned value
// is the module itself, or a single export when symbol is non-empty.
//
// Loads are always relative to a current file; the canonical path is
// guarded against cyclic re-entry before the cache is consulted, the guard
// is released on every exit path, and only fully evaluated modules are
// inserted into the cache. Diagnostics from the target are wrapped with
// this file's path and the load call's span: warnings are recorded and
// evaluation continues, the first error propagates as a hard failure.
func (c *evalContext) loadModule(ctx context.Context, rawPath, symbol string, span *hcl.Range) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx)

	if c.path == "" {
		return cty.NilVal, c.fail(diag.Configuration("load() requires a current file"))
	}

	res, err := c.eval.Resolver.Resolve(rawPath, c.path)
	if err != nil {
		return cty.NilVal, c.fail(diag.Resolution(c.path, span, rawPath, err))
	}

	// Module identity is 1:1 with files; directory loads are rejected here
	// even though the guard tolerates them.
	if c.eval.Files.IsDir(res.Path) {
		return cty.NilVal, c.fail(diag.Resolution(c.path, span, rawPath,
			fmt.Errorf("%q is a directory; loads target single files", res.Path)))
	}

	release, err := c.eval.Session.Guard().Acquire(res.Path, c.path, false)
	if err != nil {
		if cyc, ok := err.(*session.CycleError); ok {
			return cty.NilVal, c.fail(diag.Cycle(c.path, span, cyc.Chain))
		}
		return cty.NilVal, c.fail(diag.Resolution(c.path, span, rawPath, err))
	}
	defer release()

	// Fast path: a cache hit returns the already-frozen module, so a type
	// defined there keeps one identity for every importer.
	if mod, ok := c.eval.Session.Cache().Get(res.Path); ok {
		logger.Debug("Load served from module cache.", "path", res.Path)
		return c.selectExport(mod, symbol, span)
	}

	if res.Advisory != "" {
		c.diags = c.diags.Append(diag.Advisory(c.path, span, res.Advisory))
	}

	child := c.eval.newContext(res.Path, c)
	mod, childDiags := child.evalModule(ctx)

	wrapSummary := fmt.Sprintf("in module loaded from %q", rawPath)
	frame := diag.Frame{Path: res.Path, Name: fmt.Sprintf("load %q", rawPath)}
	var firstErr *diag.Diagnostic
	for _, d := range childDiags {
		wrapped := d.Wrap(c.path, span, wrapSummary)
		wrapped.CallStack = []diag.Frame{frame}
		if d.Severity == diag.Warning {
			c.diags = c.diags.Append(wrapped)
			continue
		}
		if firstErr == nil {
			firstErr = wrapped
		}
	}
	if mod == nil {
		if firstErr == nil {
			firstErr = diag.Resolution(c.path, span, rawPath, fmt.Errorf("evaluation produced no module"))
		}
		return cty.NilVal, c.fail(firstErr)
	}

	mod = c.eval.Session.Cache().Put(res.Path, mod)
	logger.Debug("Module loaded.", "path", res.Path, "from", c.path)
	return c.selectExport(mod, symbol, span)
}

// selectExport returns the module value, or one named export of it.
func (c *evalContext) selectExport(mod *lang.Module, symbol string, span *hcl.Range) (cty.Value, error) {
	if symbol == "" {
		return lang.ModuleVal(mod), nil
	}
	v, ok := mod.Env[symbol]
	if !ok {
		return cty.NilVal, c.fail(&diag.Diagnostic{
			Path:     c.path,
			Subject:  span,
			Severity: diag.Error,
			Kind:     diag.KindResolution,
			Summary:  fmt.Sprintf("module %q has no export %q", mod.Path, symbol),
		})
	}
	return v, nil
}
