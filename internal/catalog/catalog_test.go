package catalog

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T) *Catalog {
	t.Helper()
	c, err := Builtin(context.Background())
	require.NoError(t, err)
	return c
}

func TestBuiltinCatalog(t *testing.T) {
	c := builtin(t)
	assert.Equal(t, 12, c.Len())
	f, ok := c.Factory("table.concatenate")
	require.True(t, ok)
	assert.Equal(t, "Concatenate", f.Name)
	require.Len(t, f.Groups, 2)
	assert.True(t, f.Groups[0].Extendable)
	assert.Equal(t, 2, f.Groups[0].Min)

	keys := make([]string, 0, c.Len())
	for _, f := range c.Factories() {
		keys = append(keys, f.Key)
	}
	assert.IsIncreasing(t, keys)
}

func TestResolve(t *testing.T) {
	c := builtin(t)
	tests := []struct {
		name       string
		key        string
		settings   string
		want       string
		iterations int
		kind       error
		msg        string
	}{
		{name: "defaults", key: "table.filter", want: `{"column":"","pattern":""}`, iterations: 1},
		{name: "partial settings", key: "table.filter", settings: `{"column":"age"}`, want: `{"column":"age","pattern":""}`, iterations: 1},
		{name: "converted value", key: "model.learner", settings: `{"depth":"7"}`, want: `{"depth":7}`, iterations: 1},
		{name: "no settings declared", key: "table.concatenate", want: `{}`, iterations: 1},
		{name: "loop iterations default", key: "loop.end", want: `{"iterations":3}`, iterations: 3},
		{name: "loop iterations", key: "loop.end", settings: `{"iterations":5}`, want: `{"iterations":5}`, iterations: 5},
		{name: "unknown key", key: "no.such.node", kind: wferr.ErrNotFound, msg: "No node found for factory key no.such.node"},
		{name: "malformed json", key: "table.filter", settings: `{"column":`, kind: wferr.ErrInvalidInput, msg: "Problem reading factory settings"},
		{name: "not an object", key: "table.filter", settings: `[1,2]`, kind: wferr.ErrInvalidInput, msg: "must be a JSON object"},
		{name: "unknown setting", key: "table.filter", settings: `{"colour":"red"}`, kind: wferr.ErrInvalidInput, msg: `unknown setting "colour"`},
		{name: "wrong type", key: "model.learner", settings: `{"depth":"deep"}`, kind: wferr.ErrInvalidInput, msg: `setting "depth"`},
		{name: "non positive iterations", key: "loop.end", settings: `{"iterations":0}`, kind: wferr.ErrInvalidInput, msg: "iterations must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := c.Resolve(tt.key, tt.settings)
			if tt.kind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.kind)
				assert.ErrorContains(t, err, tt.msg)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, sig.Settings)
			assert.Equal(t, tt.iterations, sig.Iterations)
		})
	}
}

func TestSignatureNewNode(t *testing.T) {
	c := builtin(t)
	sig, err := c.Resolve("table.concatenate", "")
	require.NoError(t, err)
	n := sig.NewNode()

	assert.Equal(t, workflow.KindNative, n.Kind)
	assert.Equal(t, "table.concatenate", n.Native.FactoryKey)
	require.Len(t, n.InPorts, 3, "flow variable port plus the group minimum")
	assert.Equal(t, workflow.TypeFlowVariable, n.InPorts[0].Type)
	assert.Equal(t, "Input", n.InPorts[1].Group)
	require.Len(t, n.OutPorts, 2)

	n.Native.Groups[0].Types[0] = workflow.TypeImage
	f, _ := c.Factory("table.concatenate")
	assert.Equal(t, workflow.TypeTable, f.Groups[0].Types[0], "nodes do not share group state with the catalog")

	loop, err := c.Resolve("loop.end", `{"iterations":2}`)
	require.NoError(t, err)
	ln := loop.NewNode()
	assert.True(t, ln.IsLoopEnd())
	assert.Equal(t, 2, ln.Native.Iterations)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"syntax error", `node "a" {`, "failed to parse"},
		{"unknown port type", `node "a" { input "in" { types = ["video"] } }`, `unknown port type "video"`},
		{"bad loop role", `node "a" { loop = "middle" }`, "loop must be"},
		{"bounds on fixed group", `node "a" { input "in" {
  types = ["table"]
  min   = 2
} }`, "extendable groups only"},
		{"bad setting type", `node "a" { setting "s" { type = frobnicate } }`, "invalid factory"},
		{"default mismatch", `node "a" { setting "s" {
  type    = number
  default = "many"
} }`, "default does not match"},
		{"duplicate key", "node \"a\" {}\nnode \"a\" {}", "duplicate factory key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"nodes.hcl": {Data: []byte(tt.src)}}
			_, err := Load(context.Background(), fsys)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestLoadWalksDirectories(t *testing.T) {
	fsys := fstest.MapFS{
		"a/one.hcl":   {Data: []byte(`node "one" {}`)},
		"b/c/two.hcl": {Data: []byte(`node "two" { output "out" { types = ["model"] } }`)},
		"README.md":   {Data: []byte("ignored")},
	}
	c, err := Load(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	f, ok := c.Factory("one")
	require.True(t, ok)
	assert.Equal(t, "one", f.Name, "name defaults to the key")
}
