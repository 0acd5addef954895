// Package eval is the module evaluation engine: it parses a zen source
// file, executes its body in a sandboxed environment exposing the hardware
// description builtins, resolves and recursively evaluates load()-ed
// dependencies through the shared build session, and freezes the result
// into an immutable module snapshot with a typed parameter signature.
package eval

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/zenhdl/zenit/internal/ctxlog"
	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
	"github.com/zenhdl/zenit/internal/resolver"
	"github.com/zenhdl/zenit/internal/session"
	"github.com/zenhdl/zenit/internal/vfs"
)

// Evaluator evaluates zen files against one build session. It is safe for
// concurrent use: independent top-level files may be evaluated from
// separate goroutines sharing the session's cache and load guard.
type Evaluator struct {
	Session  *session.Session
	Resolver resolver.Resolver
	Files    vfs.Provider
}

// New wires an evaluator over a build session.
func New(sess *session.Session, res resolver.Resolver, files vfs.Provider) *Evaluator {
	return &Evaluator{Session: sess, Resolver: res, Files: files}
}

// EvalFile evaluates the module at path, loading dependencies recursively.
// The canonical path is guarded and cached exactly like a nested load, so a
// module reachable from two top-level files is evaluated once per build.
// Returned diagnostics may be non-empty on success (warnings).
func (e *Evaluator) EvalFile(ctx context.Context, path string) (*lang.Module, diag.Diagnostics) {
	if path == "" {
		return nil, diag.Diagnostics{diag.Configuration("no source path configured for evaluation")}
	}
	canonical, err := e.Files.Canonicalize(path)
	if err != nil {
		return nil, diag.Diagnostics{diag.Configuration(err.Error())}
	}

	release, err := e.Session.Guard().Acquire(canonical, "", false)
	if err != nil {
		if cyc, ok := err.(*session.CycleError); ok {
			return nil, diag.Diagnostics{diag.Cycle(canonical, nil, cyc.Chain)}
		}
		return nil, diag.Diagnostics{diag.Configuration(err.Error())}
	}
	defer release()

	if mod, ok := e.Session.Cache().Get(canonical); ok {
		return mod, nil
	}

	c := e.newContext(canonical, nil)
	mod, diags := c.evalModule(ctx)
	if mod != nil {
		mod = e.Session.Cache().Put(canonical, mod)
	}
	return mod, diags
}

// SetOpenFile overrides the source text for a canonical path, taking
// precedence over disk for the rest of the build (editor buffers).
func (e *Evaluator) SetOpenFile(path string, contents []byte) {
	e.Session.SetOpenFile(path, contents)
}

// evalContext carries the per-file evaluation state. The diagnostics list,
// environment, and load-index counter are exclusively owned by one body
// execution; only the session is shared.
type evalContext struct {
	eval   *Evaluator
	parent *evalContext

	path string
	// moduleName is the caller's binding name, used to attribute parameter
	// errors ("module Power") instead of the file path.
	moduleName string
	// args is non-nil during instantiation: the bound parameter values the
	// io/config builtins hand back instead of their defaults.
	args     map[string]cty.Value
	instName string

	env    map[string]cty.Value
	order  []string
	params []*lang.ParamSpec
	comps  []*lang.Component
	kids   []*lang.Instance
	props  map[string]cty.Value
	prints []string

	diags   diag.Diagnostics
	pending *diag.Diagnostic

	// goctx is the Go context of the running body execution, captured so
	// constructor closures registered mid-body can reach the logger and
	// recursive loads.
	goctx context.Context

	ctors map[string]function.Function
}

func (e *Evaluator) newContext(path string, parent *evalContext) *evalContext {
	return &evalContext{
		eval:   e,
		parent: parent,
		path:   path,
		env:    make(map[string]cty.Value),
		props:  make(map[string]cty.Value),
		ctors:  make(map[string]function.Function),
	}
}

// evalModule runs the full load-time pipeline: source, parse, execute,
// freeze. Nothing is cached on failure.
func (c *evalContext) evalModule(ctx context.Context) (*lang.Module, diag.Diagnostics) {
	logger := ctxlog.FromContext(ctx)

	if c.path == "" {
		return nil, diag.Diagnostics{diag.Configuration("no source path configured for evaluation")}
	}

	file, body, diags := c.parse(ctx)
	if diags.HasErrors() {
		return nil, diags
	}

	logger.Debug("Evaluating module body.", "path", c.path)
	if execDiags := c.execBody(ctx, body); execDiags.HasErrors() {
		return nil, c.diags.Append(execDiags...)
	}

	mod := c.freeze(file, body)
	logger.Debug("Module evaluated.", "path", c.path, "params", len(mod.Params), "components", len(mod.Components))
	return mod, c.diags
}

// parse obtains source text (open-files override wins over disk) and parses
// it. A parse failure yields one diagnostic at the failure location.
func (c *evalContext) parse(ctx context.Context) (*hcl.File, *hclsyntax.Body, diag.Diagnostics) {
	logger := ctxlog.FromContext(ctx)

	src, ok := c.eval.Session.OpenFile(c.path)
	if !ok {
		var err error
		src, err = c.eval.Files.ReadFile(c.path)
		if err != nil {
			return nil, nil, diag.Diagnostics{{
				Path:     c.path,
				Severity: diag.Error,
				Kind:     diag.KindResolution,
				Summary:  "cannot read source file",
				Detail:   err.Error(),
			}}
		}
		c.eval.Session.RememberFile(c.path, src)
	}
	c.eval.Resolver.TrackFile(c.path)

	file, parseDiags := hclsyntax.ParseConfig(src, c.path, hcl.InitialPos)
	if parseDiags.HasErrors() {
		logger.Debug("Parse failed.", "path", c.path)
		all := diag.FromHCL(c.path, parseDiags, diag.KindParse)
		if first := all.FirstError(); first != nil {
			return nil, nil, diag.Diagnostics{first}
		}
		return nil, nil, all
	}
	return file, file.Body.(*hclsyntax.Body), nil
}

// execBody executes the module body: top-level attributes in source order,
// each binding a name visible to later expressions. Blocks have no meaning
// in zen source and are rejected.
func (c *evalContext) execBody(ctx context.Context, body *hclsyntax.Body) diag.Diagnostics {
	c.goctx = ctx
	if len(body.Blocks) > 0 {
		blk := body.Blocks[0]
		rng := blk.TypeRange
		return diag.Diagnostics{{
			Path:     c.path,
			Subject:  &rng,
			Severity: diag.Error,
			Kind:     diag.KindParse,
			Summary:  fmt.Sprintf("unexpected block %q", blk.Type),
			Detail:   "zen modules are a sequence of top-level bindings",
		}}
	}

	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})

	stampLoadSpans(attrs)
	liftPostInitExprs(attrs)
	funcs := c.builtins(ctx)

	for _, attr := range attrs {
		evalCtx := &hcl.EvalContext{
			Variables: c.variables(),
			Functions: c.functions(funcs),
		}

		val, valDiags := attr.Expr.Value(evalCtx)
		if valDiags.HasErrors() {
			return diag.Diagnostics{c.takeFailure(valDiags, attr)}
		}

		c.bind(attr.Name, val)
	}
	return nil
}

// bind records a top-level binding and, when the value is instantiable (a
// module, interface type, or record type), registers a constructor function
// under the bound name for later expressions to call.
func (c *evalContext) bind(name string, val cty.Value) {
	if _, exists := c.env[name]; !exists {
		c.order = append(c.order, name)
	}
	c.env[name] = val

	if mod, ok := lang.AsModule(val); ok {
		c.ctors[name] = c.moduleCtor(name, mod)
		return
	}
	if t, ok := lang.AsType(val); ok {
		switch t.Kind {
		case lang.KindInterface:
			if t.Iface.Name == "" {
				t.Iface.Name = name
			}
			c.ctors[name] = c.ifaceCtor(name, t.Iface)
		case lang.KindRecord:
			if t.Record.Name == "" {
				t.Record.Name = name
			}
			c.ctors[name] = c.recordCtor(name, t.Record)
		case lang.KindEnum:
			if t.Enum.Name == "" {
				t.Enum.Name = name
			}
		}
	}
}

// takeFailure converts an expression failure into the engine's diagnostic
// shape. A structured diagnostic stashed by a builtin (load failures,
// binding errors) takes precedence over the flattened hcl rendering.
func (c *evalContext) takeFailure(valDiags hcl.Diagnostics, attr *hclsyntax.Attribute) *diag.Diagnostic {
	rng := attr.SrcRange
	if c.pending != nil {
		d := c.pending
		c.pending = nil
		if d.Subject == nil {
			d.Subject = &rng
		}
		if d.Path == "" {
			d.Path = c.path
		}
		return d
	}
	converted := diag.FromHCL(c.path, valDiags, diag.KindGeneric)
	if first := converted.FirstError(); first != nil {
		return first
	}
	return &diag.Diagnostic{
		Path:     c.path,
		Subject:  &rng,
		Severity: diag.Error,
		Summary:  "expression evaluation failed",
	}
}

// fail stashes a structured diagnostic and returns it as the builtin's
// error so the surrounding expression aborts.
func (c *evalContext) fail(d *diag.Diagnostic) error {
	c.pending = d
	return d
}

// variables exposes the builtin type names plus every name bound so far.
func (c *evalContext) variables() map[string]cty.Value {
	vars := map[string]cty.Value{
		"int":   lang.TypeVal(lang.IntType()),
		"float": lang.TypeVal(lang.FloatType()),
		"str":   lang.TypeVal(lang.StringType()),
		"bool":  lang.TypeVal(lang.BoolType()),
		"any":   lang.TypeVal(lang.AnyType()),
		"Net":   lang.TypeVal(lang.NetType()),
	}
	for name, val := range c.env {
		vars[name] = val
	}
	return vars
}

// functions merges the builtin table with constructors registered by
// earlier bindings.
func (c *evalContext) functions(base map[string]function.Function) map[string]function.Function {
	funcs := make(map[string]function.Function, len(base)+len(c.ctors))
	for name, fn := range base {
		funcs[name] = fn
	}
	for name, fn := range c.ctors {
		funcs[name] = fn
	}
	return funcs
}

// freeze converts the mutable evaluation state into the immutable module
// snapshot shared by every importer.
func (c *evalContext) freeze(file *hcl.File, body hcl.Body) *lang.Module {
	env := make(map[string]cty.Value, len(c.env))
	for name, val := range c.env {
		env[name] = val
	}
	props := make(map[string]cty.Value, len(c.props))
	for key, val := range c.props {
		props[key] = val
	}
	return &lang.Module{
		Path:        c.path,
		File:        file,
		Body:        body,
		Env:         env,
		Params:      c.params,
		Properties:  props,
		PrintOutput: c.prints,
		Components:  c.comps,
		Children:    c.kids,
	}
}
