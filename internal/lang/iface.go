package lang

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// InterfaceType is a named bundle of net, nested-interface, and scalar
// fields. The type is defined once per module; every instantiation produces
// an object with fresh field identities.
type InterfaceType struct {
	Name   string
	Fields []IfaceField
	// PostInit, when set, runs once per instantiation after all fields are
	// bound. A returned error surfaces as an ordinary diagnostic at the
	// instantiation site.
	PostInit func(cty.Value) error

	desc *TypeDesc
}

// IfaceField is one field spec: exactly one of Net, Iface, Scalar is set.
type IfaceField struct {
	Name   string
	Net    *Net           // template: copied on instantiate, identity never shared
	Iface  *InterfaceType // nested bundle, instantiated recursively
	Scalar *FieldSpec
}

// FieldSpec is a scalar interface field with a default.
type FieldSpec struct {
	Type    *TypeDesc
	Default cty.Value
}

// NewInterfaceType builds an interface type from field specs. Fields are
// ordered by name so instantiation is deterministic regardless of the
// source object's map ordering.
func NewInterfaceType(name string, fields []IfaceField) *InterfaceType {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	t := &InterfaceType{Name: name, Fields: fields}
	t.desc = &TypeDesc{Kind: KindInterface, Iface: t}
	return t
}

// Desc returns the descriptor carrying this type's identity.
func (t *InterfaceType) Desc() *TypeDesc { return t.desc }

// Instantiate builds an instance object. prefix seeds default net naming
// ("<prefix>_<field>") unless a field's template names the net explicitly;
// overrides replace individual fields after type-checking. The result is a
// cty object marked with the type's identity.
func (t *InterfaceType) Instantiate(prefix string, overrides map[string]cty.Value) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(t.Fields))
	used := make(map[string]bool, len(overrides))

	for _, field := range t.Fields {
		seed := field.Name
		if prefix != "" {
			seed = prefix + "_" + field.Name
		}

		if ov, ok := overrides[field.Name]; ok {
			used[field.Name] = true
			bound, err := field.check(ov)
			if err != nil {
				return cty.NilVal, fmt.Errorf("interface %s: %w", t.Name, err)
			}
			attrs[field.Name] = bound
			continue
		}

		switch {
		case field.Net != nil:
			attrs[field.Name] = NetVal(field.Net.Instantiate(seed))
		case field.Iface != nil:
			nested, err := field.Iface.Instantiate(seed, nil)
			if err != nil {
				return cty.NilVal, err
			}
			attrs[field.Name] = nested
		case field.Scalar != nil:
			if field.Scalar.Default != cty.NilVal {
				attrs[field.Name] = field.Scalar.Default
			} else {
				natural, err := NaturalDefault(field.Scalar.Type, seed)
				if err != nil {
					return cty.NilVal, fmt.Errorf("interface %s, field %q: %w", t.Name, field.Name, err)
				}
				attrs[field.Name] = natural
			}
		}
	}

	for name := range overrides {
		if !used[name] {
			return cty.NilVal, fmt.Errorf("interface %s has no field %q", t.Name, name)
		}
	}

	instance := MarkIface(cty.ObjectVal(attrs), t)
	if t.PostInit != nil {
		if err := t.PostInit(instance); err != nil {
			return cty.NilVal, fmt.Errorf("interface %s post-init: %w", t.Name, err)
		}
	}
	return instance, nil
}

// check validates an override against the field spec.
func (f *IfaceField) check(v cty.Value) (cty.Value, error) {
	switch {
	case f.Net != nil:
		if _, ok := AsNet(v); !ok {
			return cty.NilVal, fmt.Errorf("field %q expects Net, got %s", f.Name, DescribeValue(v))
		}
	case f.Iface != nil:
		if !f.Iface.Desc().Matches(v) {
			return cty.NilVal, fmt.Errorf("field %q expects %s, got %s", f.Name, f.Iface.Desc(), DescribeValue(v))
		}
	case f.Scalar != nil:
		if !f.Scalar.Type.Matches(v) {
			return cty.NilVal, fmt.Errorf("field %q expects %s, got %s", f.Name, f.Scalar.Type, DescribeValue(v))
		}
	}
	return v, nil
}

// NaturalDefault returns the type's natural empty instance, used when an
// optional io() parameter or scalar field has no declared default. Nets get
// a fresh net named after the parameter, interfaces a fresh instance;
// records and enums have no natural instance and bind null.
func NaturalDefault(t *TypeDesc, name string) (cty.Value, error) {
	switch t.Kind {
	case KindNet:
		return NetVal(NewNet(name, "")), nil
	case KindInterface:
		return t.Iface.Instantiate(name, nil)
	case KindInt, KindFloat:
		return cty.Zero, nil
	case KindString:
		return cty.StringVal(""), nil
	case KindBool:
		return cty.False, nil
	case KindList:
		return cty.EmptyTupleVal, nil
	case KindDict:
		return cty.EmptyObjectVal, nil
	default:
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
}
