package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/zenhdl/zenit/internal/diag"
	"github.com/zenhdl/zenit/internal/lang"
	"github.com/zenhdl/zenit/internal/resolver"
	"github.com/zenhdl/zenit/internal/session"
	"github.com/zenhdl/zenit/internal/vfs"
)

// newTestEvaluator builds an evaluator over an in-memory tree. Vendored
// packages live under /vendor.
func newTestEvaluator(t *testing.T, files map[string]string) *Evaluator {
	t.Helper()
	mem := vfs.NewMem()
	for path, src := range files {
		mem.Write(path, []byte(src))
	}
	return New(session.New(), resolver.NewRelative(mem, "/vendor"), mem)
}

func evalOK(t *testing.T, e *Evaluator, path string) *lang.Module {
	t.Helper()
	mod, diags := e.EvalFile(context.Background(), path)
	require.False(t, diags.HasErrors(), "unexpected diagnostics: %v", diags)
	require.NotNil(t, mod)
	return mod
}

func evalFail(t *testing.T, e *Evaluator, path string) diag.Diagnostics {
	t.Helper()
	mod, diags := e.EvalFile(context.Background(), path)
	require.True(t, diags.HasErrors(), "expected an error diagnostic")
	require.Nil(t, mod)
	return diags
}

func TestEvalSimpleBindings(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
name = "blinky"
rate = 2 * 50
vcc = Net("VCC")
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")

	assert.Equal(t, "blinky", mod.Name())
	assert.True(t, mod.Env["rate"].RawEquals(cty.NumberIntVal(100)))

	n, ok := lang.AsNet(mod.Env["vcc"])
	require.True(t, ok)
	assert.Equal(t, "VCC", n.Name)
}

func TestEvalBindingsSeeEarlierNames(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
base = 10
doubled = base * 2
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	assert.True(t, mod.Env["doubled"].RawEquals(cty.NumberIntVal(20)))
}

func TestEvalParseFailureSingleDiagnostic(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = = 1\ny = = 2\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	// One diagnostic at the first failure, not a cascade.
	require.Len(t, diags, 1)
	assert.Equal(t, diag.KindParse, diags[0].Kind)
	assert.Equal(t, "/proj/main.zen", diags[0].Path)
	require.NotNil(t, diags[0].Subject)
}

func TestEvalRejectsBlocks(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "widget \"x\" {\n}\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Contains(t, diags[0].Summary, `unexpected block "widget"`)
}

func TestEvalMissingFile(t *testing.T) {
	e := newTestEvaluator(t, nil)

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, diag.KindResolution, diags[0].Kind)
	assert.Contains(t, diags[0].Summary, "cannot read source file")
}

func TestEvalPrintCapture(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
p1 = print("power budget", 42)
p2 = print("done")
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	assert.Equal(t, []string{"power budget 42", "done"}, mod.PrintOutput)
}

func TestEvalProperties(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
layout = add_property("layout", "./board.kicad_pcb")
back = property("layout")
missing = property("nope")
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	assert.Equal(t, cty.StringVal("./board.kicad_pcb"), mod.Properties["layout"])
	assert.Equal(t, cty.StringVal("./board.kicad_pcb"), mod.Env["back"])
	assert.True(t, mod.Env["missing"].IsNull())
}

func TestEvalCheckBuiltin(t *testing.T) {
	t.Run("passing check", func(t *testing.T) {
		e := newTestEvaluator(t, map[string]string{
			"/proj/main.zen": "ok = check(1 < 2, \"math works\")\n",
		})
		mod := evalOK(t, e, "/proj/main.zen")
		assert.Equal(t, cty.True, mod.Env["ok"])
	})

	t.Run("failing check", func(t *testing.T) {
		e := newTestEvaluator(t, map[string]string{
			"/proj/main.zen": "bad = check(1 > 2, \"impossible voltage\")\n",
		})
		diags := evalFail(t, e, "/proj/main.zen")
		assert.Equal(t, "assertion failed", diags[0].Summary)
		assert.Equal(t, "impossible voltage", diags[0].Detail)
		require.NotNil(t, diags[0].Subject)
		assert.Equal(t, 1, diags[0].Subject.Start.Line)
	})
}

func TestEvalErrorBuiltin(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "boom = error(\"unsupported footprint\")\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, "unsupported footprint", diags[0].Summary)
	assert.Equal(t, "/proj/main.zen", diags[0].Path)
}

func TestEvalComponent(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
vcc = Net("VCC")
gnd = Net("GND")
r1 = component({
  name      = "R1"
  footprint = "0402"
  value     = "10k"
  pins = {
    p1 = vcc
    p2 = gnd
  }
})
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	require.Len(t, mod.Components, 1)

	comp := mod.Components[0]
	assert.Equal(t, "R1", comp.Name)
	assert.Equal(t, "0402", comp.Footprint)
	assert.Equal(t, cty.StringVal("10k"), comp.Properties["value"])

	require.Contains(t, comp.Pins, "p1")
	require.Contains(t, comp.Pins, "p2")
	assert.Equal(t, "VCC", comp.Pins["p1"].Name)
	assert.Equal(t, "GND", comp.Pins["p2"].Name)
}

func TestEvalComponentRequiresName(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "c = component({footprint = \"0402\"})\n",
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Contains(t, diags[0].Error(), "name is required")
}

func TestEvalDuplicateParamRejected(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
a = io("x", int)
b = io("x", str)
`,
	})

	diags := evalFail(t, e, "/proj/main.zen")
	assert.Equal(t, diag.KindConfiguration, diags[0].Kind)
	assert.Contains(t, diags[0].Summary, `parameter "x" declared twice`)
}

func TestEvalParamDefaultsAtLoadTime(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
vcc = io("vcc", Net)
value = config("value", str, { default = "10k" })
label = config("label", str, { optional = true })
speed = io("speed", int, { optional = true })
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")

	// The defaults run binds every parameter as optional; requiredness only
	// bites at instantiation.
	n, ok := lang.AsNet(mod.Env["vcc"])
	require.True(t, ok)
	assert.Equal(t, "vcc", n.Name)
	assert.Equal(t, cty.StringVal("10k"), mod.Env["value"])
	assert.True(t, mod.Env["label"].IsNull())
	assert.Equal(t, cty.Zero, mod.Env["speed"])

	require.Len(t, mod.Params, 4)
	assert.Equal(t, "vcc", mod.Params[0].Name)
	assert.True(t, mod.Params[0].IO)
	assert.Equal(t, "value", mod.Params[1].Name)
	assert.False(t, mod.Params[1].IO)
	assert.Equal(t, 3, mod.Params[3].Index)
}

func TestEvalTypeBuiltins(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
pads = config("pads", list(int), { optional = true })
lookup = config("lookup", dict(str), { optional = true })
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	require.Len(t, mod.Params, 2)
	assert.Equal(t, "list(int)", mod.Params[0].Type.String())
	assert.Equal(t, "dict(str)", mod.Params[1].Type.String())
}

func TestEvalEnumParam(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": `
Mount = enum("smd", "tht")
mount = config("mount", Mount, { default = "smd" })
`,
	})

	mod := evalOK(t, e, "/proj/main.zen")
	assert.Equal(t, cty.StringVal("smd"), mod.Env["mount"])

	spec, ok := mod.Param("mount")
	require.True(t, ok)
	assert.Equal(t, "enum(smd|tht)", spec.Type.String())
	// Binding the enum value named the anonymous type.
	enumType, ok := lang.AsType(mod.Env["Mount"])
	require.True(t, ok)
	assert.Equal(t, "Mount", enumType.Enum.Name)
}

func TestEvalOpenFileOverride(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = = broken\n",
	})
	e.SetOpenFile("/proj/main.zen", []byte("x = 7\n"))

	mod := evalOK(t, e, "/proj/main.zen")
	assert.True(t, mod.Env["x"].RawEquals(cty.NumberIntVal(7)))
}

func TestEvalTopLevelIsCached(t *testing.T) {
	e := newTestEvaluator(t, map[string]string{
		"/proj/main.zen": "x = 1\n",
	})

	first := evalOK(t, e, "/proj/main.zen")
	second := evalOK(t, e, "/proj/main.zen")
	assert.Same(t, first, second)
	assert.Equal(t, 1, e.Session.Cache().Len())
}
