package eval

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/zenhdl/zenit/internal/lang"
)

// jsonToBuiltin implements json_to(type): a converter value decoding a JSON
// string into the given type. Declaring it on an io/config parameter lets
// callers pass serialized records/lists where the declared type is
// structured; the binder invokes it only when the fast type check fails.
func (c *evalContext) jsonToBuiltin(args []cty.Value) (cty.Value, error) {
	if len(args) != 1 {
		return cty.NilVal, fmt.Errorf("json_to(type) takes exactly 1 argument, got %d", len(args))
	}
	target, ok := lang.AsType(args[0])
	if !ok {
		return cty.NilVal, fmt.Errorf("json_to: argument must be a type, got %s", lang.DescribeValue(args[0]))
	}
	wireType, err := wireCtyType(target)
	if err != nil {
		return cty.NilVal, fmt.Errorf("json_to: %w", err)
	}

	return lang.ConverterVal(func(v cty.Value) (cty.Value, error) {
		uv, _ := v.Unmark()
		if uv.IsNull() || uv.Type() != cty.String {
			return cty.NilVal, fmt.Errorf("expected a JSON string, got %s", lang.DescribeValue(v))
		}
		decoded, err := ctyjson.Unmarshal([]byte(uv.AsString()), wireType)
		if err != nil {
			return cty.NilVal, fmt.Errorf("invalid JSON for %s: %w", target, err)
		}
		adjusted, err := convert.Convert(decoded, wireType)
		if err != nil {
			return cty.NilVal, err
		}
		if target.Kind == lang.KindRecord {
			adjusted = lang.MarkRecord(adjusted, target.Record)
		}
		if !target.Matches(adjusted) {
			return cty.NilVal, fmt.Errorf("JSON value does not satisfy %s", target)
		}
		return adjusted, nil
	}), nil
}

// wireCtyType maps a type descriptor onto the cty type JSON decoding
// targets. Nets, interfaces, and modules have no wire form.
func wireCtyType(t *lang.TypeDesc) (cty.Type, error) {
	switch t.Kind {
	case lang.KindInt, lang.KindFloat:
		return cty.Number, nil
	case lang.KindString, lang.KindEnum:
		return cty.String, nil
	case lang.KindBool:
		return cty.Bool, nil
	case lang.KindAny:
		return cty.DynamicPseudoType, nil
	case lang.KindList:
		elem, err := wireCtyType(t.Elem)
		if err != nil {
			return cty.NilType, err
		}
		return cty.List(elem), nil
	case lang.KindDict:
		elem, err := wireCtyType(t.Elem)
		if err != nil {
			return cty.NilType, err
		}
		return cty.Map(elem), nil
	case lang.KindRecord:
		attrs := make(map[string]cty.Type, len(t.Record.Fields))
		for _, field := range t.Record.Fields {
			ft, err := wireCtyType(field.Type)
			if err != nil {
				return cty.NilType, fmt.Errorf("record field %q: %w", field.Name, err)
			}
			attrs[field.Name] = ft
		}
		return cty.Object(attrs), nil
	default:
		return cty.NilType, fmt.Errorf("%s has no JSON representation", t)
	}
}
