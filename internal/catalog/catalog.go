package catalog

import (
	"maps"
	"slices"
	"strings"

	"github.com/specialistvlad/wfengine/internal/wferr"
	"github.com/specialistvlad/wfengine/internal/workflow"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Catalog is an immutable set of node factories keyed by factory key.
type Catalog struct {
	factories map[string]*Factory
}

// Factory describes how nodes of one kind are laid out.
type Factory struct {
	Key    string               `json:"key"`
	Name   string               `json:"name"`
	Loop   workflow.LoopRole    `json:"loop,omitempty"`
	Groups []workflow.PortGroup `json:"portGroups"`

	settings []setting
}

type setting struct {
	name string
	typ  cty.Type
	def  cty.Value
}

// Signature is a resolved factory together with normalised settings.
type Signature struct {
	Factory *Factory
	// Settings is the canonical JSON form of the complete settings object.
	Settings   string
	Iterations int
}

// Resolve looks up a factory and validates raw JSON settings against it.
// Empty settings select the declared defaults.
func (c *Catalog) Resolve(key, settings string) (*Signature, error) {
	const op = "catalog.Resolve"
	f, ok := c.factories[key]
	if !ok {
		return nil, wferr.NotFound(op, "No node found for factory key %s", key)
	}
	val, err := f.decodeSettings(settings)
	if err != nil {
		return nil, wferr.Wrap(wferr.KindInvalidInput, op, err, "Problem reading factory settings of %s", key)
	}
	canonical, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, wferr.Wrap(wferr.KindInternal, op, err, "Cannot encode settings of %s", key)
	}
	sig := &Signature{Factory: f, Settings: string(canonical), Iterations: 1}
	if f.Loop == workflow.LoopEnd && val.Type().HasAttribute("iterations") {
		it := val.GetAttr("iterations")
		if !it.IsNull() && it.Type() == cty.Number {
			n, _ := it.AsBigFloat().Int64()
			if n < 1 {
				return nil, wferr.InvalidInput(op, "Problem reading factory settings of %s: iterations must be positive", key)
			}
			sig.Iterations = int(n)
		}
	}
	return sig, nil
}

// Factory returns the factory registered under key.
func (c *Catalog) Factory(key string) (*Factory, bool) {
	f, ok := c.factories[key]
	return f, ok
}

// Factories returns all factories ordered by key.
func (c *Catalog) Factories() []*Factory {
	out := make([]*Factory, 0, len(c.factories))
	for _, k := range slices.Sorted(maps.Keys(c.factories)) {
		out = append(out, c.factories[k])
	}
	return out
}

// Len returns the number of factories.
func (c *Catalog) Len() int { return len(c.factories) }

// NewNode builds an unplaced native node from the signature.
func (s *Signature) NewNode() *workflow.Node {
	groups := make([]workflow.PortGroup, len(s.Factory.Groups))
	for i, g := range s.Factory.Groups {
		g.Types = slices.Clone(g.Types)
		groups[i] = g
	}
	return workflow.NewNative(s.Factory.Key, s.Settings, groups, s.Factory.Loop, s.Iterations)
}

// SettingsType returns the object type settings of this factory conform to.
func (f *Factory) SettingsType() cty.Type {
	attrs := make(map[string]cty.Type, len(f.settings))
	for _, s := range f.settings {
		attrs[s.name] = s.typ
	}
	return cty.Object(attrs)
}

func (f *Factory) setting(name string) (setting, bool) {
	for _, s := range f.settings {
		if s.name == name {
			return s, true
		}
	}
	return setting{}, false
}

func (f *Factory) decodeSettings(raw string) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(f.settings))
	for _, s := range f.settings {
		attrs[s.name] = s.def
	}
	if strings.TrimSpace(raw) != "" {
		implied, err := ctyjson.ImpliedType([]byte(raw))
		if err != nil {
			return cty.NilVal, err
		}
		if !implied.IsObjectType() {
			return cty.NilVal, errNotObject
		}
		given, err := ctyjson.Unmarshal([]byte(raw), implied)
		if err != nil {
			return cty.NilVal, err
		}
		for name, v := range given.AsValueMap() {
			s, ok := f.setting(name)
			if !ok {
				return cty.NilVal, unknownSettingError(name)
			}
			cv, err := convert.Convert(v, s.typ)
			if err != nil {
				return cty.NilVal, settingError{name: name, err: err}
			}
			attrs[name] = cv
		}
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}
