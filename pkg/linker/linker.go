// Package linker groups compiled modules into chunks and renders them as
// bundle files.
//
// Architecture:
// - Every entry starts with the modules it reaches statically.
// - Shared modules move to common chunks (declared groups or computed ones).
// - Each dynamic import target gets an async chunk holding what its importers
//   do not already have.
// - Chunks are placed by the output plan and rendered with the runtime.
package linker

import (
	"fmt"
	"log"
	"sort"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/graph"
	"github.com/coldog/extbld/pkg/plan"
	"github.com/coldog/extbld/pkg/split"
)

type ChunkKind int

const (
	EntryChunk ChunkKind = iota
	SharedChunk
	AsyncChunk
)

func (k ChunkKind) String() string {
	switch k {
	case EntryChunk:
		return "entry"
	case SharedChunk:
		return "shared"
	case AsyncChunk:
		return "async"
	}
	return fmt.Sprintf("ChunkKind(%d)", int(k))
}

type Chunk struct {
	ID   string
	Name string
	Kind ChunkKind
	// Entry and Main are set on entry chunks only.
	Entry *entry.Entry
	Main  string

	Modules []string
	// Requires lists the shared chunks an entry needs before Main runs, in
	// load order.
	Requires []string
	// Lazy maps dynamic import targets to the async chunks that provide them.
	Lazy map[string][]string

	File string
}

func (c *Chunk) Ref() plan.ChunkRef {
	return plan.ChunkRef{ID: c.ID, Name: c.Name}
}

type Bundle struct {
	Chunks []*Chunk
	byID   map[string]*Chunk
}

func (b *Bundle) add(c *Chunk) {
	if b.byID == nil {
		b.byID = map[string]*Chunk{}
	}
	b.Chunks = append(b.Chunks, c)
	b.byID[c.ID] = c
}

func (b *Bundle) Chunk(id string) (*Chunk, bool) {
	c, ok := b.byID[id]
	return c, ok
}

// Entries returns the entry chunks in link order.
func (b *Bundle) Entries() []*Chunk {
	var out []*Chunk
	for _, c := range b.Chunks {
		if c.Kind == EntryChunk {
			out = append(out, c)
		}
	}
	return out
}

// Files returns the output paths an entry needs on first load: its shared
// chunks followed by the entry bundle itself.
func (b *Bundle) Files(name string) ([]string, bool) {
	c, ok := b.byID[name]
	if !ok || c.Kind != EntryChunk {
		return nil, false
	}
	files := make([]string, 0, len(c.Requires)+1)
	for _, id := range c.Requires {
		files = append(files, b.byID[id].File)
	}
	return append(files, c.File), true
}

// Entrypoints maps every entry name to its Files.
func (b *Bundle) Entrypoints() map[string][]string {
	out := map[string][]string{}
	for _, c := range b.Entries() {
		out[c.ID], _ = b.Files(c.ID)
	}
	return out
}

type Options struct {
	Variant config.Variant
	// Groups is the declared common bundle table of the legacy variant.
	Groups split.Table
	// MinShared is the sharing threshold of the modern variant.
	MinShared int
}

func OptionsFor(cfg config.Config) Options {
	return Options{
		Variant:   cfg.Variant(),
		Groups:    split.NewTable(cfg.ActiveGroups()),
		MinShared: cfg.MinSharedEntries,
	}
}

// Link builds the chunk set for entries from the discovered graph and
// assigns every chunk its output path.
func Link(g *graph.Graph, p *plan.Plan, entries []entry.Entry, opts Options) (*Bundle, error) {
	b := &Bundle{byID: map[string]*Chunk{}}

	var entryChunks []*Chunk
	for i := range entries {
		e := entries[i]
		// Content scripts are delivered as one file, lazy imports included.
		reach := g.Closure
		if e.Kind == entry.ContentScript {
			reach = g.Reach
		}
		modules, err := reach(e.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("link: %s: %w", e, err)
		}
		c := &Chunk{
			ID:      e.LogicalName,
			Name:    e.LogicalName,
			Kind:    EntryChunk,
			Entry:   &e,
			Main:    e.SourcePath,
			Modules: modules,
		}
		b.add(c)
		entryChunks = append(entryChunks, c)
	}

	var shared []*Chunk
	if opts.Variant == config.Legacy {
		shared = shareGroups(entryChunks, opts.Groups)
	} else {
		shared = shareCommon(entryChunks, opts.MinShared)
	}
	for _, c := range shared {
		b.add(c)
	}

	if err := linkAsync(g, b, entryChunks); err != nil {
		return nil, err
	}

	for _, c := range b.Chunks {
		file, err := p.Resolve(c.Ref())
		if err != nil {
			return nil, err
		}
		c.File = file
		log.Printf("link: %s %s -> %s (%d modules)", c.Kind, c.ID, c.File, len(c.Modules))
	}
	return b, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
