package linker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coldog/extbld/pkg/asset"
	"github.com/coldog/extbld/pkg/compiler"
	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/graph"
)

const header = "(function () {\n"
const footer = "})();\n"

// Render writes every chunk of b into out. Entry bundles carry the runtime;
// other chunks only register their modules.
func Render(b *Bundle, g *graph.Graph, cfg config.Config, out *asset.Set) error {
	for _, c := range b.Chunks {
		var buf bytes.Buffer
		var err error
		if c.Kind == EntryChunk {
			err = writeEntry(&buf, b, g, cfg, c)
		} else {
			err = writeChunk(&buf, g, c)
		}
		if err != nil {
			return fmt.Errorf("render: %s: %w", c.ID, err)
		}
		out.Put(c.File, buf.Bytes())
	}
	return nil
}

func writeEntry(w *bytes.Buffer, b *Bundle, g *graph.Graph, cfg config.Config, c *Chunk) error {
	opts := newRuntimeOptions(cfg.PublicPath, cfg.ChunkLoadTimeout)
	for _, id := range c.Requires {
		opts.URLs[id] = cfg.URL(b.byID[id].File)
	}
	for target, ids := range c.Lazy {
		opts.Lazy[target] = ids
		for _, id := range ids {
			opts.URLs[id] = cfg.URL(b.byID[id].File)
		}
	}
	boot, err := Bootstrap(TransportFor(c.Entry.Kind, cfg.Variant()), opts)
	if err != nil {
		return err
	}

	w.WriteString(header)
	w.WriteString(boot)
	if err := writeModules(w, g, c); err != nil {
		return err
	}
	return writeStart(w, c.Main, c.Requires)
}

func writeChunk(w *bytes.Buffer, g *graph.Graph, c *Chunk) error {
	w.WriteString(header)
	if err := writeModules(w, g, c); err != nil {
		return err
	}
	w.WriteString(footer)
	return nil
}

func writeStart(w *bytes.Buffer, main string, shared []string) error {
	if shared == nil {
		shared = []string{}
	}
	ids, err := json.Marshal(shared)
	if err != nil {
		return err
	}
	m, err := json.Marshal(main)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "__extbld__.start(%s, %s)[\"catch\"](__extbld__.report);\n", ids, m)
	w.WriteString(footer)
	return nil
}

// writeModules registers the chunk's modules with the runtime through the
// global chunk queue, so chunk files may run before or after the runtime is
// installed.
func writeModules(w *bytes.Buffer, g *graph.Graph, c *Chunk) error {
	id, err := json.Marshal(c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "(self.__extbld_chunks__ = self.__extbld_chunks__ || []).push([%s, {\n", id)
	for i, name := range c.Modules {
		o, ok := g.Modules[name]
		if !ok {
			return &graph.UnknownModuleError{ID: name}
		}
		if err := writeModule(w, o, i == len(c.Modules)-1); err != nil {
			return err
		}
	}
	w.WriteString("}]);\n")
	return nil
}

func writeModule(w *bytes.Buffer, o compiler.Object, last bool) error {
	name, err := json.Marshal(o.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: function (module, exports, require, %s) {\n", name, compiler.ImportFunc)
	w.Write(o.Code)
	w.WriteString("\n}")
	if !last {
		w.WriteString(",")
	}
	w.WriteString("\n")
	return nil
}
