// Package schema defines the portable introspection surface of an evaluated
// module: the ordered parameter signature downstream tooling (registry
// search, IDE completion, BOM attribution) reads without touching cty.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/zenhdl/zenit/internal/lang"
)

// ParameterInfo describes one declared io/config input in a serializable
// form. Default carries the declared default as JSON; capsule defaults
// (nets, module values) are represented by their display string.
type ParameterInfo struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Required bool            `json:"required"`
	Default  json.RawMessage `json:"default,omitempty"`
	Help     string          `json:"help,omitempty"`
	IO       bool            `json:"io"`
	Position int             `json:"position"`
}

// Signature extracts the ordered parameter list of a module's specs.
func Signature(params []*lang.ParamSpec) ([]ParameterInfo, error) {
	out := make([]ParameterInfo, 0, len(params))
	for _, p := range params {
		info := ParameterInfo{
			Name:     p.Name,
			Type:     p.Type.String(),
			Required: !p.Optional && p.Default == cty.NilVal,
			Help:     p.Help,
			IO:       p.IO,
			Position: p.Index,
		}
		if p.Default != cty.NilVal {
			raw, err := portableDefault(p.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			info.Default = raw
		}
		out = append(out, info)
	}
	return out, nil
}

// portableDefault serializes a default value to JSON. Values carrying
// identity (net and module capsules, marked interface and record instances)
// have no portable form: ctyjson would happily serialize a capsule's backing
// struct, per-build identifiers included, so those take the display-string
// path instead of being handed to the marshaller.
func portableDefault(v cty.Value) (json.RawMessage, error) {
	unmarked, marks := v.UnmarkDeep()
	if len(marks) > 0 || hasCapsule(unmarked.Type()) {
		display := lang.DescribeValue(v)
		if n, ok := lang.AsNet(v); ok {
			display = fmt.Sprintf("Net(%q)", n.Name)
		}
		return json.Marshal(display)
	}
	raw, err := ctyjson.Marshal(unmarked, unmarked.Type())
	if err != nil {
		return json.Marshal(lang.DescribeValue(v))
	}
	return raw, nil
}

// hasCapsule reports whether a capsule type appears anywhere in t.
func hasCapsule(t cty.Type) bool {
	switch {
	case t.IsCapsuleType():
		return true
	case t.IsObjectType():
		for _, at := range t.AttributeTypes() {
			if hasCapsule(at) {
				return true
			}
		}
	case t.IsTupleType():
		for _, et := range t.TupleElementTypes() {
			if hasCapsule(et) {
				return true
			}
		}
	case t.IsCollectionType():
		return hasCapsule(t.ElementType())
	}
	return false
}
