package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/wfengine/internal/ctxlog"
	"github.com/specialistvlad/wfengine/internal/fsutil"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

//go:embed builtin/*.hcl
var builtinFS embed.FS

// hclCatalogFile is the top-level structure of a catalog file.
type hclCatalogFile struct {
	Nodes []*hclNode `hcl:"node,block"`
}

type hclNode struct {
	Key      string          `hcl:"key,label"`
	Name     string          `hcl:"name,optional"`
	Loop     string          `hcl:"loop,optional"`
	Inputs   []*hclPortGroup `hcl:"input,block"`
	Outputs  []*hclPortGroup `hcl:"output,block"`
	Settings []*hclSetting   `hcl:"setting,block"`
}

type hclPortGroup struct {
	Name       string   `hcl:"name,label"`
	Types      []string `hcl:"types"`
	Extendable bool     `hcl:"extendable,optional"`
	Min        int      `hcl:"min,optional"`
	Max        int      `hcl:"max,optional"`
}

type hclSetting struct {
	Name    string         `hcl:"name,label"`
	Type    hcl.Expression `hcl:"type"`
	Default hcl.Expression `hcl:"default,optional"`
}

// Builtin loads the catalog compiled into the binary.
func Builtin(ctx context.Context) (*Catalog, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return Load(ctx, sub)
}

// LoadDir loads every .hcl file below path. An empty path selects the
// builtin catalog.
func LoadDir(ctx context.Context, path string) (*Catalog, error) {
	if path == "" {
		return Builtin(ctx)
	}
	return Load(ctx, os.DirFS(path))
}

// Load parses every .hcl file in fsys into one catalog. Factory keys must be
// unique across files.
func Load(ctx context.Context, fsys fs.FS) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFiles(fsys, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl catalog files found")
	}

	c := &Catalog{factories: make(map[string]*Factory)}
	parser := hclparse.NewParser()
	for _, path := range files {
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, err
		}
		file, diags := parser.ParseHCL(src, path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
		}
		var parsed hclCatalogFile
		if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
		}
		for _, n := range parsed.Nodes {
			if _, dup := c.factories[n.Key]; dup {
				return nil, fmt.Errorf("%s: duplicate factory key %q", path, n.Key)
			}
			f, diags := n.factory()
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid factory %q in %s: %w", n.Key, path, diags)
			}
			c.factories[n.Key] = f
		}
		logger.Debug("Loaded catalog file", "file", path, "factories", len(parsed.Nodes))
	}
	logger.Info("📚 Node catalog loaded", "factories", len(c.factories))
	return c, nil
}

var portTypes = map[string]workflow.PortType{
	string(workflow.TypeTable):  workflow.TypeTable,
	string(workflow.TypeModel):  workflow.TypeModel,
	string(workflow.TypeImage):  workflow.TypeImage,
	string(workflow.TypeObject): workflow.TypeObject,
}

func (n *hclNode) factory() (*Factory, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	errorf := func(format string, args ...any) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid node definition",
			Detail:   fmt.Sprintf(format, args...),
		})
	}

	f := &Factory{Key: n.Key, Name: n.Name}
	if f.Name == "" {
		f.Name = n.Key
	}
	switch workflow.LoopRole(n.Loop) {
	case workflow.LoopNone, workflow.LoopStart, workflow.LoopEnd:
		f.Loop = workflow.LoopRole(n.Loop)
	default:
		errorf("loop must be \"start\" or \"end\", got %q", n.Loop)
	}

	for _, side := range []struct {
		side   workflow.Side
		groups []*hclPortGroup
	}{{workflow.SideIn, n.Inputs}, {workflow.SideOut, n.Outputs}} {
		for _, g := range side.groups {
			pg := workflow.PortGroup{
				Name:       g.Name,
				Side:       side.side,
				Extendable: g.Extendable,
				Min:        g.Min,
				Max:        g.Max,
			}
			if len(g.Types) == 0 {
				errorf("port group %q declares no types", g.Name)
			}
			for _, t := range g.Types {
				pt, ok := portTypes[t]
				if !ok {
					errorf("port group %q: unknown port type %q", g.Name, t)
					continue
				}
				pg.Types = append(pg.Types, pt)
			}
			if g.Min < 0 || (g.Max > 0 && g.Max < g.Min) {
				errorf("port group %q: invalid bounds min=%d max=%d", g.Name, g.Min, g.Max)
			}
			if !g.Extendable && (g.Min != 0 || g.Max != 0) {
				errorf("port group %q: min and max apply to extendable groups only", g.Name)
			}
			f.Groups = append(f.Groups, pg)
		}
	}

	for _, s := range n.Settings {
		typ, typeDiags := typeexpr.TypeConstraint(s.Type)
		diags = append(diags, typeDiags...)
		if typeDiags.HasErrors() {
			continue
		}
		def := cty.NullVal(typ)
		val, valDiags := s.Default.Value(nil)
		diags = append(diags, valDiags...)
		if !valDiags.HasErrors() && !val.IsNull() {
			cv, err := convert.Convert(val, typ)
			if err != nil {
				errorf("setting %q: default does not match type %s: %v", s.Name, typ.FriendlyName(), err)
				continue
			}
			def = cv
		}
		f.settings = append(f.settings, setting{name: s.Name, typ: typ, def: def})
	}
	return f, diags
}
