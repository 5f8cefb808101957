// Package scan discovers entries in the source tree.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
)

// ScanError reports a declared source root or file that does not exist.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan: source root %q: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Pattern matches every recognised script file below a root.
var Pattern = "**/*{.tsx,.jsx,.ts,.js}"

// Scan returns the background entry followed by page and content-script
// entries. Order within a root follows the walk and is only meant for logs.
func Scan(cfg config.Config) ([]entry.Entry, error) {
	bg := cfg.Src.Background
	st, err := os.Stat(cfg.Abs(bg))
	if err != nil {
		return nil, &ScanError{Path: bg, Err: err}
	}
	if st.IsDir() {
		return nil, &ScanError{Path: bg, Err: errors.New("is a directory")}
	}
	entries := []entry.Entry{{
		LogicalName: "background",
		SourcePath:  bg,
		Kind:        entry.Background,
	}}

	pages, err := ScanDir(cfg, cfg.Src.Pages, entry.Page)
	if err != nil {
		return nil, err
	}
	log.Printf("Pages: %v", logicalNames(pages))

	scripts, err := ScanDir(cfg, cfg.Src.ContentScripts, entry.ContentScript)
	if err != nil {
		return nil, err
	}
	log.Printf("Content scripts: %v", logicalNames(scripts))

	entries = append(entries, pages...)
	return append(entries, scripts...), nil
}

// ScanDir lists the script files below the root-relative directory dir as
// entries of the given kind.
func ScanDir(cfg config.Config, dir string, kind entry.Kind) ([]entry.Entry, error) {
	abs := cfg.Abs(dir)
	st, err := os.Stat(abs)
	if err != nil {
		return nil, &ScanError{Path: dir, Err: err}
	}
	if !st.IsDir() {
		return nil, &ScanError{Path: dir, Err: errors.New("not a directory")}
	}

	var entries []entry.Entry
	err = doublestar.GlobWalk(os.DirFS(abs), Pattern, func(p string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		entries = append(entries, entry.Entry{
			LogicalName: entry.ScriptName(p),
			SourcePath:  path.Join(dir, p),
			Kind:        kind,
		})
		return nil
	})
	if err != nil {
		return nil, &ScanError{Path: dir, Err: err}
	}
	return entries, nil
}

func logicalNames(entries []entry.Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.LogicalName)
	}
	return names
}
