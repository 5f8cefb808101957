// Package build runs one build pass: scan, plan, compile, link, generate
// pages and the manifest, then write the output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/coldog/extbld/pkg/asset"
	"github.com/coldog/extbld/pkg/compiler"
	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/emit"
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/graph"
	"github.com/coldog/extbld/pkg/linker"
	"github.com/coldog/extbld/pkg/manifest"
	"github.com/coldog/extbld/pkg/page"
	"github.com/coldog/extbld/pkg/plan"
	"github.com/coldog/extbld/pkg/scan"
)

var ErrBuildFailed = errors.New("build failed")

type Result struct {
	Entries []entry.Entry
	Plan    *plan.Plan
	Bundle  *linker.Bundle
	Assets  *asset.Set
}

// Builder keeps the compiler, and so its cache, across builds.
type Builder struct {
	cfg      config.Config
	compiler *compiler.Compiler
}

func New(cfg config.Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := compiler.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, compiler: c}, nil
}

func (b *Builder) Config() config.Config {
	return b.cfg
}

// Build runs one pass. Fatal errors abort before anything is written. Failed
// generated assets do not: the output is written and the failures are
// returned joined with ErrBuildFailed.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	t1 := time.Now()
	res, errs, err := b.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	if err := res.Assets.Write(b.cfg.OutDir()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	log.Printf("build: %d entries, %d chunks, %d files in %v",
		len(res.Entries), len(res.Bundle.Chunks), res.Assets.Len(), time.Since(t1))
	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrBuildFailed, errors.Join(errs...))
	}
	return res, nil
}

func (b *Builder) build(ctx context.Context) (*Result, []error, error) {
	cfg := b.cfg
	entries, err := scan.Scan(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := plan.New(cfg, entries)
	if err != nil {
		return nil, nil, err
	}

	roots := make([]string, 0, len(entries))
	for _, e := range entries {
		roots = append(roots, e.SourcePath)
	}
	g, err := graph.Discover(ctx, roots, cfg.Concurrency, b.compiler.Compile)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := linker.Link(g, p, entries, linker.OptionsFor(cfg))
	if err != nil {
		return nil, nil, err
	}

	out := asset.NewSet()
	if err := copyAssets(cfg, out); err != nil {
		return nil, nil, err
	}
	if err := linker.Render(bundle, g, cfg, out); err != nil {
		return nil, nil, err
	}

	em, err := b.emitter(p)
	if err != nil {
		return nil, nil, err
	}
	errs := em.Emit(ctx, out, emit.Entrypoints(bundle.Entrypoints()))

	return &Result{Entries: entries, Plan: p, Bundle: bundle, Assets: out}, errs, nil
}

// emitter registers the page wrappers and the manifest.
func (b *Builder) emitter(p *plan.Plan) (*emit.Emitter, error) {
	cfg := b.cfg
	tmplPath := ""
	if cfg.Src.PageTemplate != "" {
		tmplPath = cfg.Abs(cfg.Src.PageTemplate)
	}
	tmpl, err := page.LoadTemplate(tmplPath)
	if err != nil {
		return nil, err
	}
	meta, err := manifest.LoadMetadata(cfg.Abs(cfg.Src.Package))
	if err != nil {
		return nil, err
	}
	title := cfg.Manifest.Title
	if title == "" {
		title = meta.Name
	}

	em := emit.New()
	for _, name := range p.Names(entry.Page) {
		htmlPath, _ := p.HTMLPath(name)
		em.Register(htmlPath, page.Producer(tmpl, name, title, p.URL))
	}
	em.Register(cfg.Dist.Manifest, manifest.Producer(meta, cfg, p))
	return em, nil
}

// copyAssets adds the source asset directory, if any, to the output.
func copyAssets(cfg config.Config, out *asset.Set) error {
	dir := cfg.Abs(cfg.Src.Assets)
	st, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("assets: %s is not a directory", cfg.Src.Assets)
	}
	return out.CopyTree(os.DirFS(dir), "**", cfg.Dist.Assets)
}
