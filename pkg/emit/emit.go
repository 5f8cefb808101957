// Package emit produces generated assets (page HTML, the manifest) once the
// chunk graph is final.
package emit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coldog/extbld/pkg/asset"
)

var ErrAlreadyEmitted = errors.New("emit: generated assets were already emitted")

// FilesFunc returns the output files of an entrypoint, in load order.
type FilesFunc func(entrypoint string) ([]string, error)

// Producer computes the content of one generated asset.
type Producer func(ctx context.Context, files FilesFunc) (string, error)

// Entrypoints maps entry names to their output files.
type Entrypoints map[string][]string

func (e Entrypoints) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e Entrypoints) Files(name string) ([]string, error) {
	files, ok := e[name]
	if !ok {
		return nil, fmt.Errorf("unknown entrypoint: %s. Available entrypoints: %s", name, strings.Join(e.Names(), ", "))
	}
	return append([]string(nil), files...), nil
}

// AssetGenerationError records a producer that failed or panicked.
type AssetGenerationError struct {
	Path string
	Err  error
}

func (e *AssetGenerationError) Error() string {
	return fmt.Sprintf("emit: generating %s: %v", e.Path, e.Err)
}

func (e *AssetGenerationError) Unwrap() error { return e.Err }

type registration struct {
	path     string
	producer Producer
}

type Emitter struct {
	mu      sync.Mutex
	regs    []registration
	emitted bool
}

func New() *Emitter {
	return &Emitter{}
}

// Register adds a generated asset. Paths are not checked for duplicates; a
// later registration for the same path overwrites the earlier one.
func (e *Emitter) Register(virtualPath string, p Producer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regs = append(e.regs, registration{path: virtualPath, producer: p})
}

// Emit runs every producer exactly once, concurrently, and writes the
// results into out in registration order. A failing producer does not stop
// the others; each failure is returned as an *AssetGenerationError.
func (e *Emitter) Emit(ctx context.Context, out *asset.Set, eps Entrypoints) []error {
	e.mu.Lock()
	if e.emitted {
		e.mu.Unlock()
		return []error{ErrAlreadyEmitted}
	}
	e.emitted = true
	regs := append([]registration(nil), e.regs...)
	e.mu.Unlock()

	contents := make([]string, len(regs))
	errs := make([]error, len(regs))

	var eg errgroup.Group
	for i, r := range regs {
		i, r := i, r
		eg.Go(func() error {
			content, err := run(ctx, r.producer, eps.Files)
			if err != nil {
				errs[i] = &AssetGenerationError{Path: r.path, Err: err}
				return nil
			}
			contents[i] = content
			return nil
		})
	}
	_ = eg.Wait()

	var failed []error
	for i, r := range regs {
		i, r := i, r
		if errs[i] != nil {
			log.Printf("emit: %s -- failed", r.path)
			failed = append(failed, errs[i])
			continue
		}
		out.Put(r.path, []byte(contents[i]))
	}
	return failed
}

func run(ctx context.Context, p Producer, files FilesFunc) (content string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("producer panicked: %v", v)
		}
	}()
	return p(ctx, files)
}
