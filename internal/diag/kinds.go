package diag

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Configuration reports engine misuse independent of any source file.
func Configuration(summary string) *Diagnostic {
	return &Diagnostic{Severity: Error, Kind: KindConfiguration, Summary: summary}
}

// Parse reports a syntax error. FromHCL is preferred when an hcl.Diagnostic
// is available; Parse covers source that never reached the parser.
func Parse(path string, subject *hcl.Range, detail string) *Diagnostic {
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Error,
		Kind:     KindParse,
		Summary:  "syntax error",
		Detail:   detail,
	}
}

// Cycle reports a self-re-entrant load chain. The chain is rendered
// innermost-last, e.g. "A.zen -> B.zen -> A.zen".
func Cycle(path string, subject *hcl.Range, chain []string) *Diagnostic {
	detail := ""
	for i, p := range chain {
		if i > 0 {
			detail += " -> "
		}
		detail += p
	}
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Error,
		Kind:     KindCycle,
		Summary:  "cyclic load detected",
		Detail:   detail,
	}
}

// Resolution reports a load path that maps to no file.
func Resolution(path string, subject *hcl.Range, loadPath string, cause error) *Diagnostic {
	d := &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Error,
		Kind:     KindResolution,
		Summary:  fmt.Sprintf("cannot resolve load path %q", loadPath),
	}
	if cause != nil {
		d.Detail = cause.Error()
	}
	return d
}

// MissingParam reports a required io/config parameter the caller omitted.
func MissingParam(path string, subject *hcl.Range, param, module string) *Diagnostic {
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Error,
		Kind:     KindMissingParam,
		Summary:  fmt.Sprintf("missing required parameter %q of module %q", param, module),
	}
}

// TypeMismatch reports a parameter value of the wrong type.
func TypeMismatch(path string, subject *hcl.Range, param, want, got string) *Diagnostic {
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Error,
		Kind:     KindTypeMismatch,
		Summary:  fmt.Sprintf("parameter %q expects %s, got %s", param, want, got),
	}
}

// Advisory reports a non-fatal policy warning on the current file.
func Advisory(path string, subject *hcl.Range, summary string) *Diagnostic {
	return &Diagnostic{
		Path:     path,
		Subject:  subject,
		Severity: Warning,
		Kind:     KindAdvisory,
		Summary:  summary,
	}
}

// FromHCL converts parser/evaluator diagnostics from hcl into the engine's
// shape, attributed to path. Errors are tagged with kind.
func FromHCL(path string, in hcl.Diagnostics, kind Kind) Diagnostics {
	var out Diagnostics
	for _, hd := range in {
		d := &Diagnostic{
			Path:    path,
			Subject: hd.Subject,
			Summary: hd.Summary,
			Detail:  hd.Detail,
		}
		if hd.Severity == hcl.DiagWarning {
			d.Severity = Warning
		} else {
			d.Severity = Error
			d.Kind = kind
		}
		out = append(out, d)
	}
	return out
}
