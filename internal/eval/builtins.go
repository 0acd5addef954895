package eval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/zenhdl/zenit/internal/binder"
	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
)

// dynFunc builds a variadic dynamically-typed cty function. The builtins do
// their own argument validation so they can produce structured diagnostics
// instead of cty's generic type errors.
func dynFunc(impl func(args []cty.Value) (cty.Value, error)) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{
			Name:             "args",
			Type:             cty.DynamicPseudoType,
			AllowNull:        true,
			AllowMarked:      true,
			AllowDynamicType: true,
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return impl(args)
		},
	})
}

// builtins constructs the domain builtin table for one body execution. Every
// function closes over the context so declarations, components, properties,
// diagnostics, and print output land on it as side effects.
func (c *evalContext) builtins(ctx context.Context) map[string]function.Function {
	return map[string]function.Function{
		"io": dynFunc(func(args []cty.Value) (cty.Value, error) {
			return c.declareParam(args, true)
		}),
		"config": dynFunc(func(args []cty.Value) (cty.Value, error) {
			return c.declareParam(args, false)
		}),
		"Net": dynFunc(c.netBuiltin),
		"interface": dynFunc(func(args []cty.Value) (cty.Value, error) {
			return c.interfaceBuiltin(args)
		}),
		"record":    dynFunc(c.recordBuiltin),
		"enum":      dynFunc(c.enumBuiltin),
		"field":     dynFunc(c.fieldBuiltin),
		"list":      dynFunc(c.listTypeBuiltin),
		"dict":      dynFunc(c.dictTypeBuiltin),
		"component": dynFunc(c.componentBuiltin),
		"load": dynFunc(func(args []cty.Value) (cty.Value, error) {
			return c.loadBuiltin(ctx, args)
		}),
		"add_property": dynFunc(c.addPropertyBuiltin),
		"property":     dynFunc(c.propertyBuiltin),
		"check":        dynFunc(c.checkBuiltin),
		"error":        dynFunc(c.errorBuiltin),
		"print":        dynFunc(c.printBuiltin),
		"json_to":      dynFunc(c.jsonToBuiltin),
	}
}

// declareParam implements io() and config(): record the parameter spec in
// declaration order and produce the value the binding receives, either the
// caller-bound value (instantiation) or the default (load-time evaluation).
func (c *evalContext) declareParam(args []cty.Value, isIO bool) (cty.Value, error) {
	kind := "config"
	if isIO {
		kind = "io"
	}
	if len(args) < 2 || len(args) > 3 {
		return cty.NilVal, fmt.Errorf("%s(name, type, opts?) takes 2 or 3 arguments, got %d", kind, len(args))
	}
	name, err := stringArg(args[0], kind+" name")
	if err != nil {
		return cty.NilVal, err
	}
	typ, ok := lang.AsType(args[1])
	if !ok {
		return cty.NilVal, fmt.Errorf("%s(%q): second argument must be a type, got %s", kind, name, lang.DescribeValue(args[1]))
	}
	if _, dup := c.paramByName(name); dup {
		return cty.NilVal, c.fail(&diag.Diagnostic{
			Path:     c.path,
			Severity: diag.Error,
			Kind:     diag.KindConfiguration,
			Summary:  fmt.Sprintf("parameter %q declared twice", name),
		})
	}

	spec := &lang.ParamSpec{
		Name:  name,
		Type:  typ,
		IO:    isIO,
		Index: len(c.params),
	}
	if len(args) == 3 {
		if err := applyParamOpts(spec, args[2], kind); err != nil {
			return cty.NilVal, err
		}
	}
	c.params = append(c.params, spec)

	// Instantiation: the caller's arguments were bound against the cached
	// signature before the body re-ran.
	if c.args != nil {
		if v, ok := c.args[name]; ok {
			return v, nil
		}
	}

	// Load-time evaluation has no caller; requiredness is deferred to
	// instantiation, so the defaults run binds every parameter as optional.
	loadSpec := *spec
	loadSpec.Optional = true
	bound, err := binder.Bind(c.displayName(), []*lang.ParamSpec{&loadSpec}, nil)
	if err != nil {
		return cty.NilVal, c.failBinding(err)
	}
	return bound[name], nil
}

// applyParamOpts reads the option object of io()/config(): optional,
// default, help, convert.
func applyParamOpts(spec *lang.ParamSpec, opts cty.Value, kind string) error {
	opts, _ = opts.Unmark()
	if opts.IsNull() || !opts.Type().IsObjectType() {
		return fmt.Errorf("%s(%q): options must be an object", kind, spec.Name)
	}
	for it := opts.ElementIterator(); it.Next(); {
		k, v := it.Element()
		switch k.AsString() {
		case "optional":
			uv, _ := v.Unmark()
			if uv.Type() != cty.Bool || uv.IsNull() {
				return fmt.Errorf("%s(%q): optional must be a bool", kind, spec.Name)
			}
			spec.Optional = uv.True()
		case "default":
			spec.Default = v
		case "help":
			help, err := stringArg(v, "help")
			if err != nil {
				return fmt.Errorf("%s(%q): %w", kind, spec.Name, err)
			}
			spec.Help = help
		case "convert":
			conv, ok := lang.AsConverter(v)
			if !ok {
				return fmt.Errorf("%s(%q): convert must be a converter", kind, spec.Name)
			}
			spec.Convert = conv
		default:
			return fmt.Errorf("%s(%q): unknown option %q", kind, spec.Name, k.AsString())
		}
	}
	return nil
}

// netBuiltin implements Net(name?, symbol?): a fresh net identity.
func (c *evalContext) netBuiltin(args []cty.Value) (cty.Value, error) {
	var name, symbol string
	var err error
	if len(args) > 2 {
		return cty.NilVal, fmt.Errorf("Net(name?, symbol?) takes at most 2 arguments, got %d", len(args))
	}
	if len(args) > 0 {
		if name, err = stringArg(args[0], "net name"); err != nil {
			return cty.NilVal, err
		}
	}
	if len(args) > 1 {
		if symbol, err = stringArg(args[1], "net symbol"); err != nil {
			return cty.NilVal, err
		}
	}
	return lang.NetVal(lang.NewNet(name, symbol)), nil
}

// interfaceBuiltin implements interface({field = spec, ...}). Field specs
// are Net templates, the bare Net type, nested interface types, scalar
// types, or field() specs. A __post_init__ item (lifted by the body rewrite)
// becomes the type's per-instantiation validation hook.
func (c *evalContext) interfaceBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("interface(fields) takes exactly 1 argument, got %d", len(args))
	}
	obj, _ := args[0].Unmark()
	if obj.IsNull() || !obj.Type().IsObjectType() {
		return cty.NilVal, fmt.Errorf("interface: fields must be an object, got %s", lang.DescribeValue(args[0]))
	}

	var fields []lang.IfaceField
	var hook func(cty.Value) error
	for it := obj.ElementIterator(); it.Next(); {
		k, v := it.Element()
		fieldName := k.AsString()

		if fieldName == "__post_init__" {
			pe, ok := asPostInitExpr(v)
			if !ok {
				return cty.NilVal, fmt.Errorf("interface: __post_init__ must be written inline in the interface literal")
			}
			hook = c.postInitHook(pe.expr)
			continue
		}

		if n, ok := lang.AsNet(v); ok {
			fields = append(fields, lang.IfaceField{Name: fieldName, Net: n})
			continue
		}
		if fs, ok := lang.AsFieldSpec(v); ok {
			fields = append(fields, lang.IfaceField{Name: fieldName, Scalar: fs})
			continue
		}
		if t, ok := lang.AsType(v); ok {
			switch t.Kind {
			case lang.KindNet:
				fields = append(fields, lang.IfaceField{Name: fieldName, Net: lang.NewNet("", "")})
			case lang.KindInterface:
				fields = append(fields, lang.IfaceField{Name: fieldName, Iface: t.Iface})
			case lang.KindInt, lang.KindFloat, lang.KindString, lang.KindBool, lang.KindEnum, lang.KindList, lang.KindDict, lang.KindAny:
				fields = append(fields, lang.IfaceField{Name: fieldName, Scalar: &lang.FieldSpec{Type: t}})
			default:
				return cty.NilVal, fmt.Errorf("interface: field %q has unsupported type %s", fieldName, t)
			}
			continue
		}
		return cty.NilVal, fmt.Errorf("interface: field %q must be a Net, a type, or field(), got %s", fieldName, lang.DescribeValue(v))
	}

	t := lang.NewInterfaceType("", fields)
	t.PostInit = hook
	return lang.TypeVal(t.Desc()), nil
}

// fieldBuiltin implements field(type, default?): a scalar interface field.
func (c *evalContext) fieldBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("field(type, default?) takes 1 or 2 arguments, got %d", len(args))
	}
	typ, ok := lang.AsType(args[0])
	if !ok {
		return cty.NilVal, fmt.Errorf("field: first argument must be a type, got %s", lang.DescribeValue(args[0]))
	}
	spec := &lang.FieldSpec{Type: typ, Default: cty.NilVal}
	if len(args) == 2 {
		if !typ.Matches(args[1]) {
			return cty.NilVal, fmt.Errorf("field: default does not match %s, got %s", typ, lang.DescribeValue(args[1]))
		}
		spec.Default = args[1]
	}
	return lang.FieldSpecVal(spec), nil
}

// recordBuiltin implements record({field = type, ...}).
func (c *evalContext) recordBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("record(fields) takes exactly 1 argument, got %d", len(args))
	}
	obj, _ := args[0].Unmark()
	if obj.IsNull() || !obj.Type().IsObjectType() {
		return cty.NilVal, fmt.Errorf("record: fields must be an object, got %s", lang.DescribeValue(args[0]))
	}
	var fields []lang.RecordField
	for it := obj.ElementIterator(); it.Next(); {
		k, v := it.Element()
		typ, ok := lang.AsType(v)
		if !ok {
			return cty.NilVal, fmt.Errorf("record: field %q must be a type, got %s", k.AsString(), lang.DescribeValue(v))
		}
		fields = append(fields, lang.RecordField{Name: k.AsString(), Type: typ})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	rec := &lang.RecordType{Fields: fields}
	return lang.TypeVal(&lang.TypeDesc{Kind: lang.KindRecord, Record: rec}), nil
}

// enumBuiltin implements enum("a", "b", ...).
func (c *evalContext) enumBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) == 0 {
		return cty.NilVal, fmt.Errorf("enum needs at least one variant")
	}
	variants := make([]string, 0, len(args))
	for _, a := range args {
		s, err := stringArg(a, "enum variant")
		if err != nil {
			return cty.NilVal, err
		}
		variants = append(variants, s)
	}
	return lang.TypeVal(&lang.TypeDesc{Kind: lang.KindEnum, Enum: &lang.EnumType{Variants: variants}}), nil
}

// listTypeBuiltin implements list(elem): the list type over elem.
func (c *evalContext) listTypeBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("list(elem) takes exactly 1 argument, got %d", len(args))
	}
	elem, ok := lang.AsType(args[0])
	if !ok {
		return cty.NilVal, fmt.Errorf("list: argument must be a type, got %s", lang.DescribeValue(args[0]))
	}
	return lang.TypeVal(lang.ListOf(elem)), nil
}

// dictTypeBuiltin implements dict(elem): string keys, elem values.
func (c *evalContext) dictTypeBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("dict(elem) takes exactly 1 argument, got %d", len(args))
	}
	elem, ok := lang.AsType(args[0])
	if !ok {
		return cty.NilVal, fmt.Errorf("dict: argument must be a type, got %s", lang.DescribeValue(args[0]))
	}
	return lang.TypeVal(lang.DictOf(elem)), nil
}

// componentBuiltin implements component({name, footprint?, pins, ...}).
// Unknown keys become free-form properties.
func (c *evalContext) componentBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("component(spec) takes exactly 1 argument, got %d", len(args))
	}
	obj, _ := args[0].Unmark()
	if obj.IsNull() || !obj.Type().IsObjectType() {
		return cty.NilVal, fmt.Errorf("component: spec must be an object, got %s", lang.DescribeValue(args[0]))
	}

	comp := &lang.Component{
		Pins:       make(map[string]*lang.Net),
		Properties: make(map[string]cty.Value),
	}
	for it := obj.ElementIterator(); it.Next(); {
		k, v := it.Element()
		switch k.AsString() {
		case "name":
			name, err := stringArg(v, "component name")
			if err != nil {
				return cty.NilVal, err
			}
			comp.Name = name
		case "footprint":
			fp, err := stringArg(v, "component footprint")
			if err != nil {
				return cty.NilVal, err
			}
			comp.Footprint = fp
		case "pins":
			pinsObj, _ := v.Unmark()
			if pinsObj.IsNull() || (!pinsObj.Type().IsObjectType() && !pinsObj.Type().IsMapType()) {
				return cty.NilVal, fmt.Errorf("component: pins must be an object of nets")
			}
			for pit := pinsObj.ElementIterator(); pit.Next(); {
				pk, pv := pit.Element()
				n, ok := lang.AsNet(pv)
				if !ok {
					return cty.NilVal, fmt.Errorf("component: pin %q must be a Net, got %s", pk.AsString(), lang.DescribeValue(pv))
				}
				comp.Pins[pk.AsString()] = n
			}
		default:
			comp.Properties[k.AsString()] = v
		}
	}
	if comp.Name == "" {
		return cty.NilVal, fmt.Errorf("component: name is required")
	}

	c.comps = append(c.comps, comp)
	return lang.ComponentVal(comp), nil
}

// loadBuiltin implements load(path) and load(path, "Symbol"). The trailing
// span argument is stamped onto every load call by the body rewrite.
func (c *evalContext) loadBuiltin(ctx context.Context, args []cty.Value) (cty.Value, error) {
	var span *hcl.Range
	if n := len(args); n > 0 {
		if ls, ok := asLoadSpan(args[n-1]); ok {
			span = &ls.rng
			args = args[:n-1]
		}
	}
	if len(args) < 1 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("load(path, symbol?) takes 1 or 2 arguments, got %d", len(args))
	}
	rawPath, err := stringArg(args[0], "load path")
	if err != nil {
		return cty.NilVal, err
	}
	symbol := ""
	if len(args) == 2 {
		if symbol, err = stringArg(args[1], "load symbol"); err != nil {
			return cty.NilVal, err
		}
	}
	return c.loadModule(ctx, rawPath, symbol, span)
}

// addPropertyBuiltin implements add_property(key, value): script-attached
// metadata (e.g. a layout path) downstream tooling reads off the module.
func (c *evalContext) addPropertyBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 2 {
		return cty.NilVal, fmt.Errorf("add_property(key, value) takes exactly 2 arguments, got %d", len(args))
	}
	key, err := stringArg(args[0], "property key")
	if err != nil {
		return cty.NilVal, err
	}
	c.props[key] = args[1]
	return args[1], nil
}

// propertyBuiltin implements property(key): read back attached metadata.
func (c *evalContext) propertyBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("property(key) takes exactly 1 argument, got %d", len(args))
	}
	key, err := stringArg(args[0], "property key")
	if err != nil {
		return cty.NilVal, err
	}
	if v, ok := c.props[key]; ok {
		return v, nil
	}
	return cty.NullVal(cty.DynamicPseudoType), nil
}

// checkBuiltin implements check(cond, msg): an assertion that fails the
// current evaluation with msg.
func (c *evalContext) checkBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 2 {
		return cty.NilVal, fmt.Errorf("check(cond, msg) takes exactly 2 arguments, got %d", len(args))
	}
	cond, _ := args[0].Unmark()
	if cond.Type() != cty.Bool || cond.IsNull() {
		return cty.NilVal, fmt.Errorf("check: condition must be a bool")
	}
	msg, err := stringArg(args[1], "check message")
	if err != nil {
		return cty.NilVal, err
	}
	if cond.False() {
		return cty.NilVal, c.fail(&diag.Diagnostic{
			Path:     c.path,
			Severity: diag.Error,
			Summary:  "assertion failed",
			Detail:   msg,
		})
	}
	return cty.True, nil
}

// errorBuiltin implements error(msg): an unconditional failure.
func (c *evalContext) errorBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("error(msg) takes exactly 1 argument, got %d", len(args))
	}
	msg, err := stringArg(args[0], "error message")
	if err != nil {
		return cty.NilVal, err
	}
	return cty.NilVal, c.fail(&diag.Diagnostic{
		Path:     c.path,
		Severity: diag.Error,
		Summary:  msg,
	})
}

// printBuiltin implements print(args...): output redirected into the
// module's in-memory buffer, never to the process streams.
func (c *evalContext) printBuiltin(args []cty.Value) (cty.Value, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, displayValue(a))
	}
	line := strings.Join(parts, " ")
	c.prints = append(c.prints, line)
	return cty.StringVal(line), nil
}

// paramByName finds an already-declared parameter.
func (c *evalContext) paramByName(name string) (*lang.ParamSpec, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// displayName names this evaluation for parameter diagnostics: the caller's
// binding name during instantiation, else the file path.
func (c *evalContext) displayName() string {
	if c.moduleName != "" {
		return c.moduleName
	}
	return c.path
}

// failBinding converts binder errors into structured diagnostics at the
// current file.
func (c *evalContext) failBinding(err error) error {
	switch e := err.(type) {
	case *binder.MissingParamError:
		return c.fail(diag.MissingParam(c.path, nil, e.Param, e.Module))
	case *binder.TypeMismatchError:
		return c.fail(diag.TypeMismatch(c.path, nil, e.Param, e.Want, e.Got))
	default:
		return c.fail(&diag.Diagnostic{
			Path:     c.path,
			Severity: diag.Error,
			Kind:     diag.KindTypeMismatch,
			Summary:  err.Error(),
		})
	}
}

// stringArg unwraps a required string argument.
func stringArg(v cty.Value, what string) (string, error) {
	v, _ = v.Unmark()
	if v.IsNull() || v.Type() != cty.String {
		return "", fmt.Errorf("%s must be a string, got %s", what, lang.DescribeValue(v))
	}
	return v.AsString(), nil
}

// displayValue renders a value for print output.
func displayValue(v cty.Value) string {
	if n, ok := lang.AsNet(v); ok {
		return fmt.Sprintf("Net(%s)", n.Name)
	}
	if m, ok := lang.AsModule(v); ok {
		return fmt.Sprintf("module(%s)", m.Path)
	}
	if t, ok := lang.AsType(v); ok {
		return t.String()
	}
	uv, _ := v.UnmarkDeep()
	if uv.IsNull() {
		return "none"
	}
	switch uv.Type() {
	case cty.String:
		return uv.AsString()
	case cty.Number:
		return uv.AsBigFloat().Text('g', -1)
	case cty.Bool:
		if uv.True() {
			return "true"
		}
		return "false"
	}
	if uv.Type().IsObjectType() || uv.Type().IsMapType() {
		var parts []string
		for it := uv.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			parts = append(parts, fmt.Sprintf("%s = %s", k.AsString(), displayValue(ev)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if uv.Type().IsTupleType() || uv.Type().IsListType() || uv.Type().IsSetType() {
		var parts []string
		for it := uv.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			parts = append(parts, displayValue(ev))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return uv.Type().FriendlyName()
}
