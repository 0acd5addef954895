package eval

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/zenhdl/zenit/internal/binder"
	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
)

// moduleCtor builds the constructor function registered when a module value
// is bound to a name: Mod({name = "U1", param = value, ...}) re-executes
// the module body with bound parameters and records a child instance.
func (c *evalContext) moduleCtor(name string, mod *lang.Module) function.Function {
	return dynFunc(func(args []cty.Value) (cty.Value, error) {
		instName, callArgs, err := splitCallArgs(name, args)
		if err != nil {
			return cty.NilVal, err
		}
		ctx := c.goctx
		if ctx == nil {
			ctx = context.Background()
		}
		return c.instantiate(ctx, name, mod, instName, callArgs)
	})
}

// instantiate binds args against the module's signature and re-executes its
// body in a child context. Binding errors surface before any body effect;
// the instance is recorded on this context on success.
func (c *evalContext) instantiate(ctx context.Context, ctorName string, mod *lang.Module, instName string, args map[string]cty.Value) (cty.Value, error) {
	bound, err := binder.Bind(ctorName, mod.Params, args)
	if err != nil {
		return cty.NilVal, c.failBinding(err)
	}

	if instName == "" {
		instName = fmt.Sprintf("%s_%d", ctorName, len(c.kids)+1)
	}

	child := c.eval.newContext(mod.Path, c)
	child.args = bound
	child.moduleName = ctorName
	child.instName = instName

	body, ok := mod.Body.(*hclsyntax.Body)
	if !ok {
		return cty.NilVal, c.fail(diag.Configuration(
			fmt.Sprintf("module %q has no executable body", mod.Path)))
	}

	execDiags := child.execBody(ctx, body)
	wrapSummary := fmt.Sprintf("in instantiation of %q as %q", ctorName, instName)
	frame := diag.Frame{Path: mod.Path, Name: fmt.Sprintf("%s as %s", ctorName, instName)}
	for _, d := range child.diags {
		if d.Severity == diag.Warning {
			wrapped := d.Wrap(c.path, nil, wrapSummary)
			wrapped.CallStack = []diag.Frame{frame}
			c.diags = c.diags.Append(wrapped)
		}
	}
	if first := execDiags.FirstError(); first != nil {
		wrapped := first.Wrap(c.path, nil, wrapSummary)
		wrapped.CallStack = []diag.Frame{frame}
		return cty.NilVal, c.fail(wrapped)
	}

	env := make(map[string]cty.Value, len(child.env))
	for k, v := range child.env {
		env[k] = v
	}
	inst := &lang.Instance{
		Name:       instName,
		Module:     mod,
		Env:        env,
		Components: child.comps,
		Children:   child.kids,
		Properties: child.props,
		Prints:     child.prints,
	}
	c.kids = append(c.kids, inst)

	if len(env) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(env), nil
}

// ifaceCtor builds the constructor for a bound interface type:
// Iface(prefix?, {overrides...}?).
func (c *evalContext) ifaceCtor(name string, t *lang.InterfaceType) function.Function {
	return dynFunc(func(args []cty.Value) (cty.Value, error) {
		prefix := ""
		var overrides map[string]cty.Value
		switch len(args) {
		case 0:
		case 1:
			uv, _ := args[0].Unmark()
			if uv.Type() == cty.String {
				prefix = uv.AsString()
			} else if uv.Type().IsObjectType() {
				overrides = objectArgs(args[0])
			} else {
				return cty.NilVal, fmt.Errorf("%s(prefix?, overrides?): got %s", name, lang.DescribeValue(args[0]))
			}
		case 2:
			p, err := stringArg(args[0], "interface name prefix")
			if err != nil {
				return cty.NilVal, err
			}
			prefix = p
			uv, _ := args[1].Unmark()
			if !uv.Type().IsObjectType() {
				return cty.NilVal, fmt.Errorf("%s: overrides must be an object, got %s", name, lang.DescribeValue(args[1]))
			}
			overrides = objectArgs(args[1])
		default:
			return cty.NilVal, fmt.Errorf("%s(prefix?, overrides?) takes at most 2 arguments, got %d", name, len(args))
		}

		instance, err := t.Instantiate(prefix, overrides)
		if err != nil {
			return cty.NilVal, c.fail(&diag.Diagnostic{
				Path:     c.path,
				Severity: diag.Error,
				Kind:     diag.KindTypeMismatch,
				Summary:  err.Error(),
			})
		}
		return instance, nil
	})
}

// recordCtor builds the constructor for a bound record type: every field
// must be supplied and match; the result carries the record's identity.
func (c *evalContext) recordCtor(name string, t *lang.RecordType) function.Function {
	return dynFunc(func(args []cty.Value) (cty.Value, error) {
		if len(args) != 1 {
			return cty.NilVal, fmt.Errorf("%s(fields) takes exactly 1 argument, got %d", name, len(args))
		}
		uv, _ := args[0].Unmark()
		if uv.IsNull() || !uv.Type().IsObjectType() {
			return cty.NilVal, fmt.Errorf("%s: fields must be an object, got %s", name, lang.DescribeValue(args[0]))
		}
		supplied := objectArgs(args[0])

		attrs := make(map[string]cty.Value, len(t.Fields))
		for _, field := range t.Fields {
			v, ok := supplied[field.Name]
			if !ok {
				return cty.NilVal, fmt.Errorf("record %s: missing field %q", name, field.Name)
			}
			if !field.Type.Matches(v) {
				return cty.NilVal, fmt.Errorf("record %s: field %q expects %s, got %s", name, field.Name, field.Type, lang.DescribeValue(v))
			}
			attrs[field.Name] = v
			delete(supplied, field.Name)
		}
		for extra := range supplied {
			return cty.NilVal, fmt.Errorf("record %s has no field %q", name, extra)
		}
		return lang.MarkRecord(cty.ObjectVal(attrs), t), nil
	})
}

// splitCallArgs interprets a constructor call's single optional object
// argument, separating the reserved "name" key from parameter arguments.
func splitCallArgs(ctor string, args []cty.Value) (instName string, callArgs map[string]cty.Value, err error) {
	switch len(args) {
	case 0:
		return "", nil, nil
	case 1:
	default:
		return "", nil, fmt.Errorf("%s(args) takes at most 1 argument, got %d", ctor, len(args))
	}
	uv, _ := args[0].Unmark()
	if uv.IsNull() || !uv.Type().IsObjectType() {
		return "", nil, fmt.Errorf("%s: arguments must be an object, got %s", ctor, lang.DescribeValue(args[0]))
	}
	callArgs = objectArgs(args[0])
	if v, ok := callArgs["name"]; ok {
		n, err := stringArg(v, "instance name")
		if err != nil {
			return "", nil, err
		}
		instName = n
		delete(callArgs, "name")
	}
	return instName, callArgs, nil
}

// objectArgs flattens an object value into a name → value map. Marks on the
// object itself are dropped; marks on the members (interface identities)
// are preserved.
func objectArgs(v cty.Value) map[string]cty.Value {
	uv, _ := v.Unmark()
	out := make(map[string]cty.Value)
	for it := uv.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		out[k.AsString()] = ev
	}
	return out
}
