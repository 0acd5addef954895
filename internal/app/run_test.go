package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg *Config) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var outW, errW bytes.Buffer
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return New(&outW, &errW, cfg), &outW, &errW
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "board.zen", `
hello = print("power budget ok")
vcc = Net("VCC")
gnd = Net("GND")
r1 = component({
  name      = "R1"
  footprint = "0402"
  pins = {
    p1 = vcc
    p2 = gnd
  }
})
`)

	app, outW, errW := newTestApp(t, &Config{Path: path})
	err := app.Run(context.Background())
	require.NoError(t, err, "stderr: %s", errW.String())

	out := outW.String()
	assert.Contains(t, out, "power budget ok")
	assert.Contains(t, out, "components: 1, nets: 2")
	assert.Contains(t, out, "R1 (0402)")
	assert.Contains(t, out, "VCC: R1.p1")
}

func TestRunDirectorySharedDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/led.zen", `
anode = io("anode", Net, { optional = true })
d = component({ name = "D1", pins = { a = anode } })
`)
	writeFile(t, dir, "a.zen", `
Led = load("./lib/led.zen")
l = Led({ name = "la" })
`)
	writeFile(t, dir, "b.zen", `
Led = load("./lib/led.zen")
l = Led({ name = "lb" })
`)

	app, outW, _ := newTestApp(t, &Config{Path: dir, Workers: 4})
	err := app.Run(context.Background())
	require.NoError(t, err)

	// Both top-level files plus the shared library: one cache entry each.
	assert.Equal(t, 3, app.Session().Cache().Len())
	assert.Contains(t, outW.String(), "la/D1")
	assert.Contains(t, outW.String(), "lb/D1")
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.zen", "boom = error(\"unsupported footprint\")\n")
	writeFile(t, dir, "good.zen", "x = 1\n")

	app, _, errW := newTestApp(t, &Config{Path: dir})
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	assert.Contains(t, errW.String(), "unsupported footprint")
}

func TestRunDescribe(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "power.zen", `
vcc = io("vcc", Net)
value = config("value", str, { default = "10k" })
`)

	app, outW, _ := newTestApp(t, &Config{Path: path, Describe: true})
	err := app.Run(context.Background())
	require.NoError(t, err)

	var doc struct {
		Path       string `json:"path"`
		Parameters []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Required bool   `json:"required"`
		} `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(outW.Bytes(), &doc))
	require.Len(t, doc.Parameters, 2)
	assert.Equal(t, "vcc", doc.Parameters[0].Name)
	assert.Equal(t, "Net", doc.Parameters[0].Type)
	assert.True(t, doc.Parameters[0].Required)
	assert.Equal(t, "value", doc.Parameters[1].Name)
	assert.False(t, doc.Parameters[1].Required)
}

func TestRunNoZenFiles(t *testing.T) {
	dir := t.TempDir()
	app, _, _ := newTestApp(t, &Config{Path: dir})
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .zen files")
}
