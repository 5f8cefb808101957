// Package split decides which modules leave their entry bundle for a shared
// one.
//
// Two strategies exist. The legacy variant evaluates a declared table of
// named groups (Classify/Partition). The modern variant moves modules used by
// several entries into anonymous shared chunks (ShareCommon).
//
// In both, content-script bundles are never split: a content script is
// delivered as exactly one injected file and cannot pull in siblings.
package split

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/resolve"
)

type Group struct {
	Name     string
	Patterns []string
}

// Match reports whether the normalized module path matches any pattern.
func (g Group) Match(modulePath string) bool {
	for _, p := range g.Patterns {
		if ok, err := doublestar.Match(p, modulePath); err == nil && ok {
			return true
		}
	}
	return false
}

// Table is evaluated in declaration order; the first matching group wins, so
// groups never overlap.
type Table []Group

func NewTable(groups []config.Group) Table {
	t := make(Table, 0, len(groups))
	for _, g := range groups {
		t = append(t, Group{Name: g.Name, Patterns: g.Patterns})
	}
	return t
}

// Normalize turns a module id into the path groups are matched against.
func Normalize(id string) string {
	return strings.TrimPrefix(resolve.StripQuery(id), "./")
}

func IsThirdParty(modulePath string) bool {
	return strings.HasPrefix(modulePath, "node_modules/") || strings.Contains(modulePath, "/node_modules/")
}

// Classify returns the group of a module given the kinds of the entries that
// reach it. A module reached only by content scripts stays private; this is
// checked before any group pattern.
func Classify(t Table, id string, reachers []entry.Kind) (string, bool) {
	if onlyContentScripts(reachers) {
		return "", false
	}
	p := Normalize(id)
	if !IsThirdParty(p) {
		return "", false
	}
	for _, g := range t {
		if g.Match(p) {
			return g.Name, true
		}
	}
	return "", false
}

func onlyContentScripts(kinds []entry.Kind) bool {
	for _, k := range kinds {
		if k != entry.ContentScript {
			return false
		}
	}
	return true
}

// Partition classifies every module and returns the assignments, keyed by
// module id.
func Partition(t Table, reachers map[string][]entry.Kind) map[string]string {
	out := map[string]string{}
	for id, kinds := range reachers {
		if g, ok := Classify(t, id, kinds); ok {
			out[id] = g
		}
	}
	return out
}

// Shared is an anonymous chunk produced by ShareCommon.
type Shared struct {
	ID      string
	Entries []string
	Modules []string
}

// ShareCommon groups modules reached by at least minEntries entries into
// shared chunks, one per distinct set of entries. closures maps entry names
// to their statically reachable modules; roots are the entry modules
// themselves and are never shared. Content-script entries must not be passed
// in closures.
func ShareCommon(minEntries int, closures map[string][]string, roots map[string]bool) []Shared {
	if minEntries < 2 {
		return nil
	}
	users := map[string][]string{}
	for name, modules := range closures {
		for _, m := range modules {
			if !roots[m] {
				users[m] = append(users[m], name)
			}
		}
	}

	byKey := map[string]*Shared{}
	for m, names := range users {
		if len(names) < minEntries {
			continue
		}
		sort.Strings(names)
		key := strings.Join(names, "\x00")
		s, ok := byKey[key]
		if !ok {
			s = &Shared{Entries: names}
			byKey[key] = s
		}
		s.Modules = append(s.Modules, m)
	}

	out := make([]Shared, 0, len(byKey))
	for _, s := range byKey {
		sort.Strings(s.Modules)
		s.ID = ChunkID(s.Modules)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChunkID derives a stable anonymous chunk id from its module list.
func ChunkID(modules []string) string {
	h := sha256.New()
	for _, m := range modules {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
