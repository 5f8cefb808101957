// Package asset holds the build output in memory until it is written to the
// output directory in one pass.
package asset

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrInvalidPath = errors.New("asset: invalid output path")

// Set maps output paths (forward slashes, relative to the output directory)
// to file content. It is safe for concurrent use; a later Put for the same
// path replaces the earlier one.
type Set struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewSet() *Set {
	return &Set{files: map[string][]byte{}}
}

func (s *Set) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = data
}

func (s *Set) Get(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	return data, ok
}

// Paths lists all output paths in sorted order.
func (s *Set) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// CopyTree adds every file of fsys matching pattern under the prefix dst.
func (s *Set) CopyTree(fsys fs.FS, pattern, dst string) error {
	return doublestar.GlobWalk(fsys, pattern, func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		s.Put(path.Join(dst, p), data)
		return nil
	})
}

func validPath(p string) bool {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "\\") {
		return false
	}
	clean := path.Clean(p)
	return clean == p && clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

// Write removes dir and writes every file of the set below it.
func (s *Set) Write(dir string) error {
	paths := s.Paths()
	for _, p := range paths {
		if !validPath(p) {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	for _, p := range paths {
		data, _ := s.Get(p)
		out := filepath.Join(dir, filepath.FromSlash(p))
		log.Printf("writing: %s", p)
		if err := writeFile(out, data); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(out string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
