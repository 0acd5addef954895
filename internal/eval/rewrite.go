package eval

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// The body rewrites below run before the first execution of a file, while
// its evaluation is still exclusive under the session guard. They mutate the
// shared syntax tree exactly once; re-executions (module instantiation) see
// the rewritten tree and leave it untouched.

// loadSpan carries a load() call's own source range into the builtin as a
// hidden trailing argument. Expression evaluation gives builtins no call
// site, and a positional counter misattributes as soon as one call executes
// more than once (a load inside a for expression), so the range rides along
// with the call itself.
type loadSpan struct {
	rng hcl.Range
}

var loadSpanCapsule = cty.Capsule("load span", reflect.TypeOf(loadSpan{}))

// stampLoadSpans appends the span argument to every load() call expression.
func stampLoadSpans(attrs []*hclsyntax.Attribute) {
	for _, attr := range attrs {
		hclsyntax.VisitAll(attr.Expr, func(node hclsyntax.Node) hcl.Diagnostics {
			call, ok := node.(*hclsyntax.FunctionCallExpr)
			if !ok || call.Name != "load" {
				return nil
			}
			if n := len(call.Args); n > 0 {
				if lit, ok := call.Args[n-1].(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type().Equals(loadSpanCapsule) {
					return nil
				}
			}
			rng := call.NameRange
			call.Args = append(call.Args, &hclsyntax.LiteralValueExpr{
				Val:      cty.CapsuleVal(loadSpanCapsule, &loadSpan{rng: rng}),
				SrcRange: rng,
			})
			return nil
		})
	}
}

func asLoadSpan(v cty.Value) (*loadSpan, bool) {
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(loadSpanCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*loadSpan), true
}

// postInitExpr carries an interface literal's __post_init__ expression,
// lifted out of the object so definition-time evaluation never touches it.
// The interface builtin unwraps it and binds it as the type's hook.
type postInitExpr struct {
	expr hclsyntax.Expression
}

var postInitCapsule = cty.Capsule("post-init hook", reflect.TypeOf(postInitExpr{}))

// liftPostInitExprs replaces the __post_init__ item of every inline
// interface({...}) literal with a capsule wrapping the original expression.
func liftPostInitExprs(attrs []*hclsyntax.Attribute) {
	for _, attr := range attrs {
		hclsyntax.VisitAll(attr.Expr, func(node hclsyntax.Node) hcl.Diagnostics {
			call, ok := node.(*hclsyntax.FunctionCallExpr)
			if !ok || call.Name != "interface" || len(call.Args) != 1 {
				return nil
			}
			obj, ok := call.Args[0].(*hclsyntax.ObjectConsExpr)
			if !ok {
				return nil
			}
			for i := range obj.Items {
				item := &obj.Items[i]
				if literalKey(item.KeyExpr) != "__post_init__" {
					continue
				}
				if lit, ok := item.ValueExpr.(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type().Equals(postInitCapsule) {
					continue
				}
				item.ValueExpr = &hclsyntax.LiteralValueExpr{
					Val:      cty.CapsuleVal(postInitCapsule, &postInitExpr{expr: item.ValueExpr}),
					SrcRange: item.ValueExpr.Range(),
				}
			}
			return nil
		})
	}
}

// literalKey reads an object item key written as a bare identifier or quoted
// literal; computed keys yield "".
func literalKey(expr hclsyntax.Expression) string {
	key, diags := expr.Value(nil)
	if diags.HasErrors() || key.IsNull() || !key.IsKnown() || key.Type() != cty.String {
		return ""
	}
	return key.AsString()
}

func asPostInitExpr(v cty.Value) (*postInitExpr, bool) {
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(postInitCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*postInitExpr), true
}

// postInitHook adapts a lifted __post_init__ expression into the interface
// type's instantiation hook. The expression evaluates once per instance in a
// scratch context over the defining module's bindings, with self bound to
// the freshly built object; a failed check() or error() fails the
// instantiation.
func (c *evalContext) postInitHook(expr hclsyntax.Expression) func(cty.Value) error {
	return func(instance cty.Value) error {
		ctx := c.goctx
		if ctx == nil {
			ctx = context.Background()
		}
		scratch := c.eval.newContext(c.path, c)
		scratch.goctx = ctx
		for k, v := range c.env {
			scratch.env[k] = v
		}
		vars := scratch.variables()
		vars["self"] = instance

		evalCtx := &hcl.EvalContext{
			Variables: vars,
			Functions: scratch.builtins(ctx),
		}
		_, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			if d := scratch.pending; d != nil {
				if d.Detail != "" {
					return fmt.Errorf("%s: %s", d.Summary, d.Detail)
				}
				return errors.New(d.Summary)
			}
			return errors.New(diags.Errs()[0].Error())
		}
		return nil
	}
}
