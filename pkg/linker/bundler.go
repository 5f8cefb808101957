package linker

import (
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/graph"
	"github.com/coldog/extbld/pkg/split"
)

// shareGroups moves modules classified into a declared group out of every
// non content-script entry. Groups are returned in table order and only when
// they received modules.
func shareGroups(entries []*Chunk, t split.Table) []*Chunk {
	if len(t) == 0 {
		return nil
	}
	reachers := map[string][]entry.Kind{}
	for _, c := range entries {
		for _, m := range c.Modules {
			reachers[m] = append(reachers[m], c.Entry.Kind)
		}
	}
	assign := split.Partition(t, reachers)

	members := map[string]map[string]bool{}
	for _, c := range entries {
		if c.Entry.Kind == entry.ContentScript {
			continue
		}
		used := map[string]bool{}
		kept := make([]string, 0, len(c.Modules))
		for _, m := range c.Modules {
			name, ok := assign[m]
			if !ok {
				kept = append(kept, m)
				continue
			}
			if members[name] == nil {
				members[name] = map[string]bool{}
			}
			members[name][m] = true
			used[name] = true
		}
		c.Modules = kept
		for _, g := range t {
			if used[g.Name] {
				c.Requires = append(c.Requires, g.Name)
			}
		}
	}

	var out []*Chunk
	for _, g := range t {
		if len(members[g.Name]) == 0 {
			continue
		}
		out = append(out, &Chunk{
			ID:      g.Name,
			Name:    g.Name,
			Kind:    SharedChunk,
			Modules: sortedKeys(members[g.Name]),
		})
	}
	return out
}

// shareCommon moves modules used by at least minEntries entries into
// anonymous shared chunks. Content scripts never take part.
func shareCommon(entries []*Chunk, minEntries int) []*Chunk {
	closures := map[string][]string{}
	roots := map[string]bool{}
	byName := map[string]*Chunk{}
	for _, c := range entries {
		roots[c.Main] = true
		if c.Entry.Kind == entry.ContentScript {
			continue
		}
		closures[c.ID] = c.Modules
		byName[c.ID] = c
	}

	var out []*Chunk
	for _, s := range split.ShareCommon(minEntries, closures, roots) {
		moved := map[string]bool{}
		for _, m := range s.Modules {
			moved[m] = true
		}
		for _, name := range s.Entries {
			c := byName[name]
			c.Modules = without(c.Modules, moved)
			c.Requires = append(c.Requires, s.ID)
		}
		out = append(out, &Chunk{
			ID:      s.ID,
			Kind:    SharedChunk,
			Modules: s.Modules,
		})
	}
	return out
}

// linkAsync creates one async chunk per dynamic import target. A chunk holds
// the target's static closure minus the modules every importing entry already
// loads up front. Identical chunks are shared between targets.
func linkAsync(g *graph.Graph, b *Bundle, entries []*Chunk) error {
	initial := map[string]map[string]bool{}
	targets := map[string][]string{}
	owners := map[string][]string{}
	for _, c := range entries {
		c.Lazy = map[string][]string{}
		if c.Entry.Kind == entry.ContentScript {
			continue
		}
		set := map[string]bool{}
		for _, m := range c.Modules {
			set[m] = true
		}
		for _, id := range c.Requires {
			for _, m := range b.byID[id].Modules {
				set[m] = true
			}
		}
		initial[c.ID] = set

		reach, err := g.Reach(c.Main)
		if err != nil {
			return err
		}
		targets[c.ID] = g.DynamicTargets(reach)
		for _, t := range targets[c.ID] {
			owners[t] = append(owners[t], c.ID)
		}
	}

	provided := map[string][]string{}
	for _, t := range sortedKeys(keySet(owners)) {
		closure, err := g.Closure(t)
		if err != nil {
			return err
		}
		var modules []string
		for _, m := range closure {
			if !inAll(m, owners[t], initial) {
				modules = append(modules, m)
			}
		}
		if len(modules) == 0 {
			continue
		}
		id := split.ChunkID(modules)
		if _, ok := b.byID[id]; !ok {
			b.add(&Chunk{ID: id, Kind: AsyncChunk, Modules: modules})
		}
		provided[t] = []string{id}
	}

	for _, c := range entries {
		for _, t := range targets[c.ID] {
			if ids, ok := provided[t]; ok {
				c.Lazy[t] = ids
			}
		}
	}
	return nil
}

func inAll(m string, names []string, sets map[string]map[string]bool) bool {
	for _, n := range names {
		if !sets[n][m] {
			return false
		}
	}
	return true
}

func without(modules []string, drop map[string]bool) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		if !drop[m] {
			out = append(out, m)
		}
	}
	return out
}

func keySet[V any](m map[string]V) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
