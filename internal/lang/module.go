package lang

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// ParamSpec is one declared io() or config() input of a module, recorded in
// declaration order during evaluation and read-only afterwards.
type ParamSpec struct {
	Name     string
	Type     *TypeDesc
	Optional bool
	Default  cty.Value // cty.NilVal when no default was declared
	Convert  Converter // nil when no convert hook was declared
	Help     string
	// IO distinguishes io() from config(): an omitted optional io() with no
	// default auto-initializes to the type's natural instance, an omitted
	// optional config() binds no value.
	IO bool
	// Index is the declaration position within the module.
	Index int
}

// Module is the immutable result of evaluating one file. It is created on
// success, cached by canonical path, and shared read-only by every importer;
// nothing mutates it after construction.
type Module struct {
	// Path is the canonical path the module was evaluated from.
	Path string
	// File is the parsed source; Body is its hclsyntax body, re-executed on
	// instantiation.
	File *hcl.File
	Body hcl.Body
	// Env is the frozen environment: every top-level binding of the
	// defaults evaluation.
	Env map[string]cty.Value
	// Params is the ordered parameter signature.
	Params []*ParamSpec
	// Properties holds script-attached metadata (e.g. a layout path).
	Properties map[string]cty.Value
	// PrintOutput is the redirected print() output of the defaults run.
	PrintOutput []string
	// Components and Children describe the design the defaults run built;
	// top-level files are consumed through these.
	Components []*Component
	Children   []*Instance
}

// Name returns the module's display name, the export "name" when the script
// set one, else the file path.
func (m *Module) Name() string {
	if v, ok := m.Env["name"]; ok {
		if uv, _ := v.Unmark(); uv.Type() == cty.String && !uv.IsNull() {
			return uv.AsString()
		}
	}
	return m.Path
}

// Param returns the declared parameter with the given name, if any.
func (m *Module) Param(name string) (*ParamSpec, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Instance is one instantiation of a module inside a parent body: the bound
// environment plus everything the re-executed body declared.
type Instance struct {
	Name       string
	Module     *Module
	Env        map[string]cty.Value
	Components []*Component
	Children   []*Instance
	Properties map[string]cty.Value
	Prints     []string
}
