// Package compiler turns a single source module into an Object. Script
// transpilation is done by esbuild; import specifiers are then resolved and
// rewritten so the linker can bundle modules by id.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/resolve"
)

var ErrUnsupported = errors.New("unsupported module type")

// CompileError carries esbuild diagnostics for one module.
type CompileError struct {
	ID       string
	Messages []string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile: %s:\n%s", e.ID, strings.Join(e.Messages, "\n"))
}

var scriptLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// styleExts are exported as raw text; style transforms are not part of the
// build.
var styleExts = map[string]bool{
	".css":  true,
	".scss": true,
	".sass": true,
}

type Compiler struct {
	cfg      config.Config
	resolver *resolve.Resolver
	cache    *lru.Cache[string, Object]
	options  string
}

func New(cfg config.Config) (*Compiler, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, Object](size)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		cfg:      cfg,
		resolver: &resolve.Resolver{Root: cfg.Root, Aliases: cfg.Aliases()},
		cache:    cache,
		options:  string(cfg.Mode) + "|" + string(cfg.Browser) + "|" + cfg.PublicPath,
	}, nil
}

// Compile reads and compiles the module id. Results are cached by content,
// so a watch rebuild only recompiles files that changed.
func (c *Compiler) Compile(id string) (Object, error) {
	file := resolve.StripQuery(id)
	src, err := os.ReadFile(c.cfg.Abs(file))
	if err != nil {
		return Object{}, fmt.Errorf("compile: %s: %w", id, err)
	}

	key := hash([]byte(id), []byte(c.options), src)
	if o, ok := c.cache.Get(key); ok {
		log.Printf("compile: %s -- (cached)", id)
		return o, nil
	}

	t1 := time.Now()
	code, err := c.transform(id, src)
	if err != nil {
		return Object{}, err
	}
	code, imports, dynamic, err := rewriteImports(code, func(spec string) (string, error) {
		return c.resolver.Resolve(file, spec)
	})
	if err != nil {
		return Object{}, fmt.Errorf("compile: %s: %w", id, err)
	}

	o := Object{
		ID:      id,
		Hash:    hash(code),
		Code:    code,
		Imports: imports,
		Dynamic: dynamic,
	}
	c.cache.Add(key, o)
	log.Printf("compile: %s -- (%v)", id, time.Since(t1))
	return o, nil
}

func (c *Compiler) transform(id string, src []byte) ([]byte, error) {
	file := resolve.StripQuery(id)
	ext := path.Ext(file)
	loader, isScript := scriptLoaders[ext]

	switch {
	case resolve.Query(id) == "raw":
		return textModule(src)
	case c.isAsset(file) && !isScript && ext != ".json":
		rel := strings.TrimPrefix(file, c.cfg.Src.Base+"/")
		return textModule([]byte(c.cfg.URL(rel)))
	case styleExts[ext]:
		return textModule(src)
	case ext == ".json":
		return c.esbuild(id, src, api.LoaderJSON)
	}

	if !isScript {
		return nil, fmt.Errorf("compile: %s: %w", id, ErrUnsupported)
	}
	return c.esbuild(id, src, loader)
}

func (c *Compiler) esbuild(id string, src []byte, loader api.Loader) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Sourcefile: id,
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Platform:   api.PlatformBrowser,
		Target:     api.ES2020,
		JSX:        api.JSXAutomatic,
		JSXDev:     c.cfg.Mode == config.Development,
		Define:     c.defines(),
		// Keep import() so the linker can turn it into a chunk load.
		Supported: map[string]bool{"dynamic-import": true},
		LogLevel:  api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, &CompileError{
			ID: id,
			Messages: api.FormatMessages(result.Errors, api.FormatMessagesOptions{
				Kind: api.ErrorMessage,
			}),
		}
	}
	return result.Code, nil
}

func (c *Compiler) defines() map[string]string {
	defs := c.cfg.Defines()
	defs["process.env.NODE_ENV"] = fmt.Sprintf("%q", string(c.cfg.Mode))
	return defs
}

func (c *Compiler) isAsset(file string) bool {
	return strings.HasPrefix(file, c.cfg.Src.Assets+"/")
}

func textModule(content []byte) ([]byte, error) {
	data, err := json.Marshal(string(content))
	if err != nil {
		return nil, err
	}
	return []byte("module.exports = " + string(data) + ";\n"), nil
}
