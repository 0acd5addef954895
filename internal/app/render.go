package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/netlist"
)

var (
	errorLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnLabel    = color.New(color.FgYellow, color.Bold).SprintFunc()
	locStyle     = color.New(color.FgCyan).SprintFunc()
	detailStyle  = color.New(color.Faint).SprintFunc()
	headerStyle  = color.New(color.Bold).SprintFunc()
	netNameStyle = color.New(color.FgGreen).SprintFunc()
)

// renderDiagnostics writes every diagnostic, unwinding each causal chain
// one indent level per load hop so the original failure site reads last.
func renderDiagnostics(w io.Writer, diags diag.Diagnostics) {
	for _, d := range diags {
		renderChain(w, d, 0)
	}
}

func renderChain(w io.Writer, d *diag.Diagnostic, depth int) {
	indent := strings.Repeat("  ", depth)

	label := errorLabel("error")
	if d.Severity == diag.Warning {
		label = warnLabel("warning")
	}

	loc := d.Path
	if d.Subject != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Path, d.Subject.Start.Line, d.Subject.Start.Column)
	}

	fmt.Fprintf(w, "%s%s: %s: %s\n", indent, label, locStyle(loc), d.Summary)
	if d.Detail != "" {
		fmt.Fprintf(w, "%s  %s\n", indent, detailStyle(d.Detail))
	}
	for _, frame := range d.CallStack {
		fmt.Fprintf(w, "%s  at %s (%s)\n", indent, frame.Name, frame.Path)
	}
	if d.Child != nil {
		renderChain(w, d.Child, depth+1)
	}
}

// renderNetlist prints the flattened connectivity summary for one
// top-level module.
func renderNetlist(w io.Writer, path string, list *netlist.Netlist) {
	fmt.Fprintf(w, "%s\n", headerStyle(path))
	fmt.Fprintf(w, "  components: %d, nets: %d\n", len(list.Components), len(list.Nets))
	for _, comp := range list.Components {
		if comp.Footprint != "" {
			fmt.Fprintf(w, "  %s (%s)\n", comp.Path, comp.Footprint)
		} else {
			fmt.Fprintf(w, "  %s\n", comp.Path)
		}
	}
	for _, net := range list.Nets {
		pins := make([]string, 0, len(net.Pins))
		for _, pin := range net.Pins {
			pins = append(pins, pin.Component+"."+pin.Pin)
		}
		fmt.Fprintf(w, "  %s: %s\n", netNameStyle(net.Name), strings.Join(pins, ", "))
	}
}
