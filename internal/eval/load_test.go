package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
)

func TestLoadModuleValue(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
Power = load("./lib/power.zen")
`,
		"/proj/lib/power.zen": `
name = "power"
rail = Net("VBUS")
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")

	loaded, ok := lang.AsModule(mod.Env["Power"])
	require.True(t, ok)
	assert.Equal(t, "/proj/lib/power.zen", loaded.Path)
	assert.Equal(t, "power", loaded.Name())
	assert.Equal(t, 2, e.Session.Cache().Len())
}

func TestLoadSymbolExport(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
rail = load("./lib.zen", "rail")
`,
		"/proj/lib.zen": `
rail = Net("VBUS")
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	n, ok := lang.AsNet(mod.Env["rail"])
	require.True(t, ok)
	assert.Equal(t, "VBUS", n.Name)
}

func TestLoadMissingExport(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = load(\"./lib.zen\", \"Nope\")\n",
		"/proj/lib.zen":  "rail = Net(\"VBUS\")\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, diag.KindResolution, diags[0].Kind)
	assert.Contains(t, diags[0].Summary, `no export "Nope"`)
}

func TestLoadUnresolvablePath(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = load(\"./nope.zen\")\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, diag.KindResolution, diags[0].Kind)
	assert.Contains(t, diags[0].Summary, `cannot resolve load path "./nope.zen"`)
	require.NotNil(t, diags[0].Subject)
	assert.Equal(t, 1, diags[0].Subject.Start.Line)
}

func TestLoadDirectoryRejected(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen":    "x = load(\"./lib\")\n",
		"/proj/lib/mod.zen": "y = 1\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, diag.KindResolution, diags[0].Kind)
	assert.Contains(t, diags[0].Detail, "loads target single files")
}

func TestLoadSelfCycle(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/A.zen": "Self = load(\"./A.zen\")\n",
	})

	diags := evalFail(t, e, "/proj/A.zen")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindCycle, diags[0].Kind)
	assert.Equal(t, "cyclic load detected", diags[0].Summary)
	assert.Equal(t, "/proj/A.zen -> /proj/A.zen", diags[0].Detail)
}

func TestLoadIndirectCycle(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/A.zen": "B = load(\"./B.zen\")\n",
		"/proj/B.zen": "A = load(\"./A.zen\")\n",
	})

	diags := evalFail(t, e, "/proj/A.zen")
	require.Len(t, diags, 1)

	// The cycle is detected inside B and wrapped at A's load call.
	top := diags[0]
	assert.Equal(t, diag.KindCycle, top.Kind)
	assert.Equal(t, "/proj/A.zen", top.Path)
	assert.Contains(t, top.Summary, `in module loaded from "./B.zen"`)

	root := top.Root()
	assert.Equal(t, "/proj/B.zen", root.Path)
	assert.Equal(t, "/proj/A.zen -> /proj/B.zen -> /proj/A.zen", root.Detail)
}

func TestLoadFailureIsRetryable(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/A.zen": "Self = load(\"./A.zen\")\n",
	})

	evalFail(t, e, "/proj/A.zen")
	// The guard released the path, so the same build can retry it.
	diags := evalFail(t, e, "/proj/A.zen")
	assert.Equal(t, diag.KindCycle, diags[0].Kind)
	assert.Equal(t, 0, e.Session.Cache().Len())
}

func TestLoadDiagnosticChain(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/C.zen": `
B = load("./B.zen")
`,
		"/proj/B.zen": `
A = load("./A.zen")
`,
		"/proj/A.zen": `
boom = error("broken widget")
`,
	})

	diags := evalFail(t, e, "/proj/C.zen")
	require.Len(t, diags, 1)

	// Each hop carries its own file and the span of its load call.
	top := diags[0]
	assert.Equal(t, "/proj/C.zen", top.Path)
	assert.Contains(t, top.Summary, `in module loaded from "./B.zen"`)
	require.NotNil(t, top.Subject)
	assert.Equal(t, 2, top.Subject.Start.Line)
	require.Len(t, top.CallStack, 1)
	assert.Equal(t, `load "./B.zen"`, top.CallStack[0].Name)
	assert.Equal(t, "/proj/B.zen", top.CallStack[0].Path)

	mid := top.Child
	require.NotNil(t, mid)
	assert.Equal(t, "/proj/B.zen", mid.Path)
	assert.Contains(t, mid.Summary, `in module loaded from "./A.zen"`)
	require.NotNil(t, mid.Subject)
	assert.Equal(t, 2, mid.Subject.Start.Line)

	root := mid.Child
	require.NotNil(t, root)
	assert.Equal(t, "/proj/A.zen", root.Path)
	assert.Equal(t, "broken widget", root.Summary)
	assert.Nil(t, root.Child)
}

func TestLoadTypeIdentityAcrossImporters(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/types.zen": `
Power = interface({
  vcc = Net
  gnd = Net
})
`,
		"/proj/a.zen": `
Power = load("./types.zen", "Power")
p = Power("a")
`,
		"/proj/b.zen": `
Power = load("./types.zen", "Power")
`,
	})

	modA := evalOK(t, e, "/proj/a.zen")
	modB := evalOK(t, e, "/proj/b.zen")

	typeA, ok := lang.AsType(modA.Env["Power"])
	require.True(t, ok)
	typeB, ok := lang.AsType(modB.Env["Power"])
	require.True(t, ok)

	// One evaluation of types.zen serves both importers, so the interface
	// keeps a single identity for the whole build.
	assert.Same(t, typeA.Iface, typeB.Iface)
	assert.Equal(t, 3, e.Session.Cache().Len())

	// An instance built in a.zen satisfies the type as seen from b.zen.
	assert.True(t, typeB.Matches(modA.Env["p"]))
}

func TestLoadVendorPackageWithAdvisory(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
R = load("@stdlib/resistor.zen@main")
`,
		"/vendor/stdlib/resistor.zen": `
name = "resistor"
`,
	})

	mod, diags := e.EvalFile(context.Background(), "/proj/main.zen")
	require.NotNil(t, mod)
	require.False(t, diags.HasErrors())

	// The unstable pin surfaces as a warning without failing the load.
	require.Len(t, diags, 1)
	assert.Equal(t, diag.Warning, diags[0].Severity)
	assert.Equal(t, diag.KindAdvisory, diags[0].Kind)
	assert.Contains(t, diags[0].Summary, "unstable dependency pin")

	loaded, ok := lang.AsModule(mod.Env["R"])
	require.True(t, ok)
	assert.Equal(t, "/vendor/stdlib/resistor.zen", loaded.Path)
}

func TestLoadWarningFromChildIsWrapped(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
Lib = load("./lib.zen")
`,
		"/proj/lib.zen": `
R = load("@stdlib/resistor.zen@main")
`,
		"/vendor/stdlib/resistor.zen": `
name = "resistor"
`,
	})

	mod, diags := e.EvalFile(context.Background(), "/proj/main.zen")
	require.NotNil(t, mod)
	require.False(t, diags.HasErrors())
	require.Len(t, diags, 1)

	top := diags[0]
	assert.Equal(t, diag.Warning, top.Severity)
	assert.Equal(t, "/proj/main.zen", top.Path)
	require.NotNil(t, top.Child)
	assert.Equal(t, "/proj/lib.zen", top.Child.Path)
	assert.Contains(t, top.Child.Summary, "unstable dependency pin")
}

func TestLoadDiamondSharesOneEvaluation(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
A = load("./a.zen", "shared")
B = load("./b.zen", "shared")
`,
		"/proj/a.zen":      "shared = load(\"./shared.zen\")\n",
		"/proj/b.zen":      "shared = load(\"./shared.zen\")\n",
		"/proj/shared.zen": "marker = Net(\"M\")\n",
	})

	mod := evalOK(t, e, "/proj/main.zen")
	assert.Equal(t, 4, e.Session.Cache().Len())

	sharedA, ok := lang.AsModule(mod.Env["A"])
	require.True(t, ok)
	sharedB, ok := lang.AsModule(mod.Env["B"])
	require.True(t, ok)
	assert.Same(t, sharedA, sharedB)

	// Same module means same net identity for its exports.
	netA, _ := lang.AsNet(sharedA.Env["marker"])
	netB, _ := lang.AsNet(sharedB.Env["marker"])
	assert.Equal(t, netA.ID, netB.ID)
}

func TestLoadPathMustBeString(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = load(42)\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Contains(t, diags[0].Error(), "load path must be a string")
}

func TestLoadSpanPerCallExpression(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
libs = [for p in ["./a.zen", "./a.zen", "./a.zen"] : load(p)]
bad = load("./missing.zen")
`,
		"/proj/a.zen": "x = 1\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	require.Len(t, diags, 1)

	// The load in the comprehension runs once per element; the failing
	// call's attribution must stay on its own line.
	assert.Contains(t, diags[0].Summary, `"./missing.zen"`)
	require.NotNil(t, diags[0].Subject)
	assert.Equal(t, 3, diags[0].Subject.Start.Line)
}
