// Package diag defines the diagnostic shape produced by the evaluator and
// consumed by CLI/IDE surfaces: a severity, a source location, a human
// message, and an optional child diagnostic preserving the causal chain
// across nested loads.
package diag

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// Error aborts evaluation of the file that produced it.
	Error Severity = iota
	// Warning is recorded and evaluation continues.
	Warning
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Kind identifies the failure class of a diagnostic.
type Kind int

const (
	KindGeneric Kind = iota
	// KindConfiguration marks engine misuse, e.g. evaluating without a
	// source path. Not retryable.
	KindConfiguration
	// KindParse marks a syntax error in a source file.
	KindParse
	// KindCycle marks a self-re-entrant load chain.
	KindCycle
	// KindResolution marks a load path that maps to no file.
	KindResolution
	// KindMissingParam marks a required io/config parameter the caller omitted.
	KindMissingParam
	// KindTypeMismatch marks a parameter value of the wrong type with no
	// successful conversion.
	KindTypeMismatch
	// KindAdvisory marks a non-fatal policy warning, e.g. an unstable
	// dependency pin.
	KindAdvisory
)

// Frame is one entry of an evaluation call stack attached to a diagnostic.
type Frame struct {
	Path string
	Name string
}

// Diagnostic is one error or warning. Child, when set, is the diagnostic
// this one wraps: an error in a loaded module surfaces in the loader as a
// Diagnostic whose Child is the loaded module's own diagnostic, and so on
// up the load chain.
type Diagnostic struct {
	Path      string
	Subject   *hcl.Range
	Severity  Severity
	Kind      Kind
	Summary   string
	Detail    string
	Child     *Diagnostic
	CallStack []Frame
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Path)
	if d.Subject != nil {
		fmt.Fprintf(&b, ":%d:%d", d.Subject.Start.Line, d.Subject.Start.Column)
	}
	fmt.Fprintf(&b, ": %s: %s", d.Severity, d.Summary)
	if d.Detail != "" {
		b.WriteString("; ")
		b.WriteString(d.Detail)
	}
	if d.Child != nil {
		b.WriteString("\n  caused by: ")
		b.WriteString(d.Child.Error())
	}
	return b.String()
}

// Root returns the deepest diagnostic of the causal chain, i.e. the one
// produced at the original failure site.
func (d *Diagnostic) Root() *Diagnostic {
	cur := d
	for cur.Child != nil {
		cur = cur.Child
	}
	return cur
}

// Wrap returns a new diagnostic attributed to path/subject whose child is d.
// Severity and kind are inherited so a wrapped error stays an error.
func (d *Diagnostic) Wrap(path string, subject *hcl.Range, summary string) *Diagnostic {
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: d.Severity,
		Kind:     d.Kind,
		Summary:  summary,
		Child:    d,
	}
}

// Diagnostics is an ordered collection preserving detection order.
type Diagnostics []*Diagnostic

// Append adds diagnostics, skipping nils.
func (ds Diagnostics) Append(more ...*Diagnostic) Diagnostics {
	for _, d := range more {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return ds
}

// HasErrors reports whether any diagnostic is error-severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// FirstError returns the first error-severity diagnostic, or nil.
func (ds Diagnostics) FirstError() *Diagnostic {
	for _, d := range ds {
		if d.Severity == Error {
			return d
		}
	}
	return nil
}

// Error implements the error interface over the whole collection.
func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "no diagnostics"
	case 1:
		return ds[0].Error()
	}
	return fmt.Sprintf("%s (and %d more diagnostics)", ds[0].Error(), len(ds)-1)
}
