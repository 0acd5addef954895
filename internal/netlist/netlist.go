// Package netlist materializes the electrical connectivity graph from a
// frozen module snapshot: every component pin grouped by net identity,
// across the whole instance tree. BOM generation and exporters consume this
// view instead of walking evaluation state themselves.
package netlist

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/zenhdl/zenit/internal/lang"
)

// PinRef is one component pin attached to a net.
type PinRef struct {
	Component string
	Pin       string
}

// NetRecord is one electrical net and everything wired to it.
type NetRecord struct {
	ID   uuid.UUID
	Name string
	Pins []PinRef
}

// ComponentRecord is one placed component with its resolved instance path.
type ComponentRecord struct {
	Path      string
	Name      string
	Footprint string
}

// Netlist is the flattened connectivity of one top-level module.
type Netlist struct {
	Nets       []NetRecord
	Components []ComponentRecord
}

// Build flattens a module's component and instance tree. Component names
// are qualified by their instance path ("psu/R1") so repeated instantiation
// of one module stays unambiguous.
func Build(mod *lang.Module) *Netlist {
	b := &builder{nets: make(map[uuid.UUID]*NetRecord)}
	b.walk("", mod.Components, mod.Children)

	list := &Netlist{Components: b.comps}
	for _, rec := range b.nets {
		sort.Slice(rec.Pins, func(i, j int) bool {
			if rec.Pins[i].Component != rec.Pins[j].Component {
				return rec.Pins[i].Component < rec.Pins[j].Component
			}
			return rec.Pins[i].Pin < rec.Pins[j].Pin
		})
		list.Nets = append(list.Nets, *rec)
	}
	sort.Slice(list.Nets, func(i, j int) bool {
		if list.Nets[i].Name != list.Nets[j].Name {
			return list.Nets[i].Name < list.Nets[j].Name
		}
		return list.Nets[i].ID.String() < list.Nets[j].ID.String()
	})
	sort.Slice(list.Components, func(i, j int) bool {
		return list.Components[i].Path < list.Components[j].Path
	})
	return list
}

type builder struct {
	nets  map[uuid.UUID]*NetRecord
	comps []ComponentRecord
}

func (b *builder) walk(prefix string, comps []*lang.Component, kids []*lang.Instance) {
	for _, comp := range comps {
		path := comp.Name
		if prefix != "" {
			path = prefix + "/" + comp.Name
		}
		b.comps = append(b.comps, ComponentRecord{
			Path:      path,
			Name:      comp.Name,
			Footprint: comp.Footprint,
		})
		for pin, net := range comp.Pins {
			rec, ok := b.nets[net.ID]
			if !ok {
				name := net.Name
				if name == "" {
					name = fmt.Sprintf("N$%s", net.ID.String()[:8])
				}
				rec = &NetRecord{ID: net.ID, Name: name}
				b.nets[net.ID] = rec
			}
			rec.Pins = append(rec.Pins, PinRef{Component: path, Pin: pin})
		}
	}
	for _, kid := range kids {
		childPrefix := kid.Name
		if prefix != "" {
			childPrefix = prefix + "/" + kid.Name
		}
		b.walk(childPrefix, kid.Components, kid.Children)
	}
}
