package build

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watch builds once and then again after every change below the source
// base, to package.json or to the page template. Each result is passed to
// done. Watch returns when ctx is cancelled.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, done func(*Result, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, b.cfg.Abs(b.cfg.Src.Base)); err != nil {
		return err
	}
	for _, f := range []string{b.cfg.Src.Package, b.cfg.Src.PageTemplate} {
		if f == "" {
			continue
		}
		if err := w.Add(b.cfg.Abs(f)); err != nil {
			log.Printf("watch: %s: %v", f, err)
		}
	}
	out := b.cfg.Abs(b.cfg.Dist.Base) + string(filepath.Separator)

	done(b.Build(ctx))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(ev.Name, out) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := watchTree(w, ev.Name); err != nil {
						log.Printf("watch: %v", err)
					}
				}
			}
			log.Printf("watch: %s %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		case <-fire:
			fire = nil
			done(b.Build(ctx))
		}
	}
}

// watchTree adds dir and every directory below it; inotify watches are not
// recursive.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
