// Package binder implements the declared-parameter contract: matching
// caller-supplied values against a module's ordered io/config signature,
// applying defaults, natural empty instances, and convert hooks.
package binder

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/zenhdl/zenit/internal/lang"
)

// MissingParamError reports a required parameter the caller omitted.
type MissingParamError struct {
	Param  string
	Module string
}

// Error implements the error interface.
func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required parameter %q of module %q", e.Param, e.Module)
}

// TypeMismatchError reports a value of the wrong type with no successful
// conversion. Cause, when set, is the convert hook's own failure.
type TypeMismatchError struct {
	Param  string
	Module string
	Want   string
	Got    string
	Cause  error
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("parameter %q of module %q expects %s, got %s", e.Param, e.Module, e.Want, e.Got)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the convert hook's failure to errors.Is/As.
func (e *TypeMismatchError) Unwrap() error { return e.Cause }

// UnknownParamError reports a caller argument that matches no declared
// parameter.
type UnknownParamError struct {
	Param  string
	Module string
}

// Error implements the error interface.
func (e *UnknownParamError) Error() string {
	return fmt.Sprintf("module %q has no parameter %q", e.Module, e.Param)
}

// Bind resolves every declared parameter, in declaration order, against the
// caller's arguments:
//
//   - supplied and matching → used as-is, the convert hook is skipped;
//   - supplied and mismatched → the convert hook runs if present; a hook
//     failure or a still-mismatched result is a type mismatch;
//   - absent with a declared default → the default, convert-adjusted the
//     same way a supplied value would be;
//   - absent, required, no default → MissingParamError;
//   - absent, optional io() → the type's natural empty instance (a fresh
//     net, a fresh interface instance, a zero scalar);
//   - absent, optional config() → no value (null).
//
// Arguments naming no declared parameter are rejected. A parameter is never
// silently absent from the result.
func Bind(module string, params []*lang.ParamSpec, args map[string]cty.Value) (map[string]cty.Value, error) {
	bound := make(map[string]cty.Value, len(params))
	declared := make(map[string]bool, len(params))

	for _, p := range params {
		declared[p.Name] = true

		if v, ok := args[p.Name]; ok {
			adjusted, err := coerce(module, p, v)
			if err != nil {
				return nil, err
			}
			bound[p.Name] = adjusted
			continue
		}

		if p.Default != cty.NilVal {
			adjusted, err := coerce(module, p, p.Default)
			if err != nil {
				return nil, err
			}
			bound[p.Name] = adjusted
			continue
		}

		if !p.Optional {
			return nil, &MissingParamError{Param: p.Name, Module: module}
		}

		if p.IO {
			natural, err := lang.NaturalDefault(p.Type, p.Name)
			if err != nil {
				return nil, fmt.Errorf("parameter %q of module %q: %w", p.Name, module, err)
			}
			bound[p.Name] = natural
			continue
		}

		bound[p.Name] = cty.NullVal(cty.DynamicPseudoType)
	}

	for name := range args {
		if !declared[name] {
			return nil, &UnknownParamError{Param: name, Module: module}
		}
	}
	return bound, nil
}

// coerce applies the fast type check and, only when it fails, the convert
// hook. A hook result that still misses the declared type is a mismatch.
func coerce(module string, p *lang.ParamSpec, v cty.Value) (cty.Value, error) {
	// cty numbers are unified, so int→float widening is already a match
	// here and never reaches the hook.
	if p.Type.Matches(v) {
		return v, nil
	}
	if p.Convert == nil {
		return cty.NilVal, &TypeMismatchError{
			Param:  p.Name,
			Module: module,
			Want:   p.Type.String(),
			Got:    lang.DescribeValue(v),
		}
	}
	converted, err := p.Convert(v)
	if err != nil {
		return cty.NilVal, &TypeMismatchError{
			Param:  p.Name,
			Module: module,
			Want:   p.Type.String(),
			Got:    lang.DescribeValue(v),
			Cause:  err,
		}
	}
	if !p.Type.Matches(converted) {
		return cty.NilVal, &TypeMismatchError{
			Param:  p.Name,
			Module: module,
			Want:   p.Type.String(),
			Got:    lang.DescribeValue(converted),
			Cause:  fmt.Errorf("convert hook returned a value of the wrong type"),
		}
	}
	return converted, nil
}
