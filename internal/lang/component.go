package lang

import "github.com/zclconf/go-cty/cty"

// Component declares a physical part with pins wired to nets. Components
// are recorded on the module context as the body executes; downstream
// tooling (BOM, KiCad export) consumes them from the frozen snapshot.
type Component struct {
	Name       string
	Footprint  string
	Pins       map[string]*Net
	Properties map[string]cty.Value
}
