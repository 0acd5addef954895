// Package lang implements the declarative type layer of the zen language:
// runtime type descriptors, nets, interface bundles, records, enums,
// components, and the frozen module snapshot the evaluator produces.
//
// Values live in the cty type system. Nets, types, modules, and converters
// are cty capsules; instantiated interface and module objects are ordinary
// cty objects carrying an identity mark, so field access stays native HCL.
package lang

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Kind enumerates the closed set of runtime type variants.
type Kind int

const (
	KindAny Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindNet
	KindInterface
	KindRecord
	KindEnum
	KindList
	KindDict
)

// TypeDesc describes a declared parameter or field type. Scalar, list, and
// dict descriptors compare structurally; interface and record descriptors
// compare by the identity of the type declared at a specific site, which the
// module cache keeps unique per canonical path per build.
type TypeDesc struct {
	Kind   Kind
	Elem   *TypeDesc      // list element / dict value type
	Iface  *InterfaceType // identity, Kind == KindInterface
	Record *RecordType    // identity, Kind == KindRecord
	Enum   *EnumType      // Kind == KindEnum
}

// RecordType is a named product type declared with record(). Identity is the
// declaration site: two loads of the defining module yield one *RecordType.
type RecordType struct {
	Name   string
	Fields []RecordField
}

// RecordField is one typed field of a record.
type RecordField struct {
	Name string
	Type *TypeDesc
}

// EnumType is a closed set of string variants declared with enum().
type EnumType struct {
	Name     string
	Variants []string
}

var (
	anyDesc    = &TypeDesc{Kind: KindAny}
	intDesc    = &TypeDesc{Kind: KindInt}
	floatDesc  = &TypeDesc{Kind: KindFloat}
	stringDesc = &TypeDesc{Kind: KindString}
	boolDesc   = &TypeDesc{Kind: KindBool}
	netDesc    = &TypeDesc{Kind: KindNet}
)

// AnyType returns the dynamic descriptor.
func AnyType() *TypeDesc { return anyDesc }

// IntType returns the integer descriptor.
func IntType() *TypeDesc { return intDesc }

// FloatType returns the float descriptor.
func FloatType() *TypeDesc { return floatDesc }

// StringType returns the string descriptor.
func StringType() *TypeDesc { return stringDesc }

// BoolType returns the bool descriptor.
func BoolType() *TypeDesc { return boolDesc }

// NetType returns the net descriptor.
func NetType() *TypeDesc { return netDesc }

// ListOf returns a list descriptor over elem.
func ListOf(elem *TypeDesc) *TypeDesc { return &TypeDesc{Kind: KindList, Elem: elem} }

// DictOf returns a dict descriptor with string keys and elem values.
func DictOf(elem *TypeDesc) *TypeDesc { return &TypeDesc{Kind: KindDict, Elem: elem} }

// Matches reports whether v satisfies the descriptor exactly, without any
// conversion. The binder uses this as the fast compatibility check that
// gates the convert hook.
func (t *TypeDesc) Matches(v cty.Value) bool {
	if v == cty.NilVal {
		return false
	}
	// Identity marks live on the value itself; everything else inspects the
	// unmarked payload.
	uv, _ := v.Unmark()
	if uv.IsNull() {
		return false
	}
	switch t.Kind {
	case KindAny:
		return true
	case KindInt:
		if uv.Type() != cty.Number {
			return false
		}
		return uv.AsBigFloat().IsInt()
	case KindFloat:
		return uv.Type() == cty.Number
	case KindString:
		return uv.Type() == cty.String
	case KindBool:
		return uv.Type() == cty.Bool
	case KindNet:
		_, ok := AsNet(uv)
		return ok
	case KindInterface:
		iface, ok := IfaceMarkOf(v)
		return ok && iface == t.Iface
	case KindRecord:
		rec, ok := RecordMarkOf(v)
		return ok && rec == t.Record
	case KindEnum:
		if uv.Type() != cty.String {
			return false
		}
		s := uv.AsString()
		for _, variant := range t.Enum.Variants {
			if s == variant {
				return true
			}
		}
		return false
	case KindList:
		if !uv.Type().IsListType() && !uv.Type().IsTupleType() && !uv.Type().IsSetType() {
			return false
		}
		for it := uv.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if !t.Elem.Matches(ev) {
				return false
			}
		}
		return true
	case KindDict:
		if !uv.Type().IsMapType() && !uv.Type().IsObjectType() {
			return false
		}
		for it := uv.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if !t.Elem.Matches(ev) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether two descriptors denote the same type: structural
// for scalars and collections, declaration-site identity for interfaces
// and records.
func (t *TypeDesc) Equal(other *TypeDesc) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindInterface:
		return t.Iface == other.Iface
	case KindRecord:
		return t.Record == other.Record
	case KindEnum:
		if len(t.Enum.Variants) != len(other.Enum.Variants) {
			return false
		}
		for i, v := range t.Enum.Variants {
			if other.Enum.Variants[i] != v {
				return false
			}
		}
		return true
	case KindList, KindDict:
		return t.Elem.Equal(other.Elem)
	}
	return true
}

// String renders a friendly type name for diagnostics and signatures.
func (t *TypeDesc) String() string {
	switch t.Kind {
	case KindAny:
		return "any"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindBool:
		return "bool"
	case KindNet:
		return "Net"
	case KindInterface:
		if t.Iface.Name != "" {
			return "interface " + t.Iface.Name
		}
		return "interface"
	case KindRecord:
		if t.Record.Name != "" {
			return "record " + t.Record.Name
		}
		return "record"
	case KindEnum:
		return fmt.Sprintf("enum(%s)", strings.Join(t.Enum.Variants, "|"))
	case KindList:
		return fmt.Sprintf("list(%s)", t.Elem)
	case KindDict:
		return fmt.Sprintf("dict(%s)", t.Elem)
	}
	return "unknown"
}

// DescribeValue names a value's type for mismatch diagnostics.
func DescribeValue(v cty.Value) string {
	if v == cty.NilVal {
		return "nothing"
	}
	if iface, ok := IfaceMarkOf(v); ok {
		return (&TypeDesc{Kind: KindInterface, Iface: iface}).String()
	}
	if rec, ok := RecordMarkOf(v); ok {
		return (&TypeDesc{Kind: KindRecord, Record: rec}).String()
	}
	uv, _ := v.Unmark()
	if uv.IsNull() {
		return "null"
	}
	if _, ok := AsNet(uv); ok {
		return "Net"
	}
	return uv.Type().FriendlyName()
}
