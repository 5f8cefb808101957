package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("could not resolve")

// Extensions are tried in order when a specifier has no extension.
var Extensions = []string{".js", ".jsx", ".ts", ".tsx"}

// Resolver implements a basic node resolution algorithm over a project root.
// Module ids are slash separated paths relative to Root, with any query
// suffix ("?raw") preserved.
type Resolver struct {
	Root    string
	Aliases map[string]string
}

// Resolve resolves name as imported from the module id from.
func (r *Resolver) Resolve(from, name string) (string, error) {
	spec, query := splitQuery(name)

	var candidate string
	switch {
	case strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		candidate = path.Join(path.Dir(from), spec)
	case strings.HasPrefix(spec, "/"):
		candidate = strings.TrimPrefix(path.Clean(spec), "/")
	default:
		if aliased, ok := r.alias(spec); ok {
			candidate = aliased
		} else {
			candidate = path.Join("node_modules", spec)
		}
	}
	if candidate == ".." || strings.HasPrefix(candidate, "../") {
		return "", fmt.Errorf("%w: %q from %s: outside of the project root", ErrNotFound, name, from)
	}

	id, err := r.file(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %q from %s", ErrNotFound, name, from)
	}
	return id + query, nil
}

// alias rewrites the longest matching alias prefix.
func (r *Resolver) alias(spec string) (string, bool) {
	keys := make([]string, 0, len(r.Aliases))
	for k := range r.Aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		if spec == k {
			return r.Aliases[k], true
		}
		if strings.HasPrefix(spec, k+"/") {
			return path.Join(r.Aliases[k], strings.TrimPrefix(spec, k+"/")), true
		}
	}
	return "", false
}

func (r *Resolver) stat(id string) (os.FileInfo, error) {
	return os.Stat(filepath.Join(r.Root, filepath.FromSlash(id)))
}

// file tries name as a file, then with each extension, then as a directory.
func (r *Resolver) file(name string) (string, error) {
	st, err := r.stat(name)
	if err == nil && !st.IsDir() {
		return name, nil
	}
	for _, ext := range Extensions {
		if xst, xerr := r.stat(name + ext); xerr == nil && !xst.IsDir() {
			return name + ext, nil
		}
	}
	if err != nil {
		return "", err
	}

	if main, ok := r.packageMain(name); ok {
		if id, err := r.file(path.Join(name, main)); err == nil {
			return id, nil
		}
	}
	for _, ext := range Extensions {
		index := path.Join(name, "index"+ext)
		if st, err := r.stat(index); err == nil && !st.IsDir() {
			return index, nil
		}
	}
	return "", os.ErrNotExist
}

// packageMain reads the entry point of a package directory, preferring the
// browser field over main.
func (r *Resolver) packageMain(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(dir), "package.json"))
	if err != nil {
		return "", false
	}
	m := struct {
		Browser json.RawMessage `json:"browser"`
		Main    string          `json:"main"`
	}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", false
	}
	var browser string
	if len(m.Browser) > 0 && json.Unmarshal(m.Browser, &browser) == nil && browser != "" {
		return browser, true
	}
	if m.Main != "" {
		return m.Main, true
	}
	return "", false
}

func splitQuery(name string) (string, string) {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		return name[:i], name[i:]
	}
	return name, ""
}

// StripQuery returns the file part of a module id.
func StripQuery(id string) string {
	p, _ := splitQuery(id)
	return p
}

// Query returns the query of a module id without the leading '?'.
func Query(id string) string {
	_, q := splitQuery(id)
	return strings.TrimPrefix(q, "?")
}
