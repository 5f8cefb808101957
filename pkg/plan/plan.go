// Package plan maps entries to output paths before anything is compiled, so
// that pages and the manifest can reference stable URLs.
package plan

import (
	"path"
	"sort"
	"strings"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
)

// ChunkRef identifies a compiled chunk for filename resolution. Named chunks
// (entries and declared groups) must be in the plan; anonymous chunks are
// placed under the chunks root by id.
type ChunkRef struct {
	ID   string
	Name string
}

// Roots are the output directories whose content is fetched at runtime.
type Roots struct {
	Assets string
	Chunks string
	Libs   string
}

type Plan struct {
	cfg     config.Config
	outputs map[string]string
	kinds   map[string]entry.Kind
	groups  map[string]bool
}

// New builds the output mapping for entries and the declared common groups of
// the configured variant. The mapping is injective; any collision is a
// PlanningError.
func New(cfg config.Config, entries []entry.Entry) (*Plan, error) {
	p := &Plan{
		cfg:     cfg,
		outputs: map[string]string{},
		kinds:   map[string]entry.Kind{},
		groups:  map[string]bool{},
	}
	owners := map[string]string{}

	add := func(name, out string) error {
		if _, ok := p.outputs[name]; ok {
			return &PlanningError{Kind: ErrDuplicate, Name: name}
		}
		if other, ok := owners[out]; ok {
			return &PlanningError{Kind: ErrCollision, Name: name, Msg: out + " is already planned for " + other}
		}
		p.outputs[name] = out
		owners[out] = name
		return nil
	}

	for _, e := range entries {
		out, err := p.entryOutput(e)
		if err != nil {
			return nil, err
		}
		if err := add(e.LogicalName, out); err != nil {
			return nil, err
		}
		p.kinds[e.LogicalName] = e.Kind
	}
	for _, g := range cfg.ActiveGroups() {
		if err := add(g.Name, path.Join(cfg.Dist.Libs, g.Name+".js")); err != nil {
			return nil, err
		}
		p.groups[g.Name] = true
	}
	return p, nil
}

func (p *Plan) entryOutput(e entry.Entry) (string, error) {
	switch e.Kind {
	case entry.Background:
		return p.cfg.Dist.Background, nil
	case entry.Page:
		return path.Join(p.cfg.Dist.Pages, e.LogicalName+".js"), nil
	case entry.ContentScript:
		return path.Join(p.cfg.Dist.ContentScripts, e.LogicalName+".js"), nil
	}
	return "", &PlanningError{Kind: ErrUnresolvable, Name: e.LogicalName, Msg: "unknown entry kind " + e.Kind.String()}
}

// Output returns the planned path of an entry or group.
func (p *Plan) Output(name string) (string, bool) {
	out, ok := p.outputs[name]
	return out, ok
}

// Resolve returns the output path of a chunk.
func (p *Plan) Resolve(c ChunkRef) (string, error) {
	if c.Name != "" {
		if out, ok := p.outputs[c.Name]; ok {
			return out, nil
		}
		return "", &PlanningError{Kind: ErrUnresolvable, Name: c.Name, Msg: "named chunk " + c.ID + " has no planned output"}
	}
	if c.ID == "" || strings.ContainsAny(c.ID, "/\\") {
		return "", &PlanningError{Kind: ErrUnresolvable, Name: c.ID, Msg: "anonymous chunk without a usable id"}
	}
	return path.Join(p.cfg.Dist.Chunks, c.ID+".js"), nil
}

// HTMLPath is the generated page wrapper next to the page bundle.
func (p *Plan) HTMLPath(page string) (string, bool) {
	if p.kinds[page] != entry.Page {
		return "", false
	}
	out := p.outputs[page]
	return strings.TrimSuffix(out, ".js") + ".html", true
}

// Names lists planned entries of the given kind in sorted order.
func (p *Plan) Names(kind entry.Kind) []string {
	var names []string
	for name, k := range p.kinds {
		if k == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (p *Plan) IsGroup(name string) bool {
	return p.groups[name]
}

func (p *Plan) Roots() Roots {
	return Roots{
		Assets: p.cfg.Dist.Assets,
		Chunks: p.cfg.Dist.Chunks,
		Libs:   p.cfg.Dist.Libs,
	}
}

// URL returns the public URL of a planned output path.
func (p *Plan) URL(out string) string {
	return p.cfg.URL(out)
}
