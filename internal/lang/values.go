package lang

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// Converter adapts a mismatched parameter value into the declared type. It
// is stored on the parameter descriptor and invoked only after the fast
// type check fails.
type Converter func(cty.Value) (cty.Value, error)

// Capsule types carrying engine identities through cty expressions.
var (
	netCapsule       = cty.Capsule("net", reflect.TypeOf(Net{}))
	typeCapsule      = cty.Capsule("type", reflect.TypeOf(TypeDesc{}))
	moduleCapsule    = cty.Capsule("module", reflect.TypeOf(Module{}))
	componentCapsule = cty.Capsule("component", reflect.TypeOf(Component{}))
	fieldSpecCapsule = cty.Capsule("field", reflect.TypeOf(FieldSpec{}))
	converterCapsule = cty.Capsule("converter", reflect.TypeOf(Converter(nil)))
)

// NetVal wraps a net. Capsule equality is pointer equality, which is
// exactly the per-instance identity nets require.
func NetVal(n *Net) cty.Value { return cty.CapsuleVal(netCapsule, n) }

// AsNet unwraps a net value.
func AsNet(v cty.Value) (*Net, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(netCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Net), true
}

// TypeVal wraps a type descriptor for use as a first-class value in zen
// source (e.g. the second argument of io/config).
func TypeVal(t *TypeDesc) cty.Value { return cty.CapsuleVal(typeCapsule, t) }

// AsType unwraps a type descriptor value.
func AsType(v cty.Value) (*TypeDesc, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(typeCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*TypeDesc), true
}

// ModuleVal wraps an evaluated module.
func ModuleVal(m *Module) cty.Value { return cty.CapsuleVal(moduleCapsule, m) }

// AsModule unwraps a module value.
func AsModule(v cty.Value) (*Module, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(moduleCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Module), true
}

// ComponentVal wraps a component declaration.
func ComponentVal(c *Component) cty.Value { return cty.CapsuleVal(componentCapsule, c) }

// AsComponent unwraps a component value.
func AsComponent(v cty.Value) (*Component, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(componentCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*Component), true
}

// FieldSpecVal wraps a scalar interface field spec created by field().
func FieldSpecVal(f *FieldSpec) cty.Value { return cty.CapsuleVal(fieldSpecCapsule, f) }

// AsFieldSpec unwraps a field spec value.
func AsFieldSpec(v cty.Value) (*FieldSpec, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(fieldSpecCapsule) {
		return nil, false
	}
	return v.EncapsulatedValue().(*FieldSpec), true
}

// ConverterVal wraps a converter hook.
func ConverterVal(c Converter) cty.Value { return cty.CapsuleVal(converterCapsule, &c) }

// AsConverter unwraps a converter value.
func AsConverter(v cty.Value) (Converter, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	v, _ = v.Unmark()
	if v.IsNull() || !v.Type().Equals(converterCapsule) {
		return nil, false
	}
	return *v.EncapsulatedValue().(*Converter), true
}

// ifaceMark tags an instantiated interface object with its type identity.
// Marks travel with cty values through expressions, so provenance survives
// field traversal and function application.
type ifaceMark struct{ t *InterfaceType }

// recordMark tags a record value with its type identity.
type recordMark struct{ t *RecordType }

// MarkIface tags an instance object with its interface type.
func MarkIface(v cty.Value, t *InterfaceType) cty.Value { return v.Mark(ifaceMark{t}) }

// IfaceMarkOf returns the interface identity of an instance object.
func IfaceMarkOf(v cty.Value) (*InterfaceType, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	_, marks := v.Unmark()
	for m := range marks {
		if im, ok := m.(ifaceMark); ok {
			return im.t, true
		}
	}
	return nil, false
}

// MarkRecord tags a value with its record type identity.
func MarkRecord(v cty.Value, t *RecordType) cty.Value { return v.Mark(recordMark{t}) }

// RecordMarkOf returns the record identity of a value.
func RecordMarkOf(v cty.Value) (*RecordType, bool) {
	if v == cty.NilVal {
		return nil, false
	}
	_, marks := v.Unmark()
	for m := range marks {
		if rm, ok := m.(recordMark); ok {
			return rm.t, true
		}
	}
	return nil, false
}
