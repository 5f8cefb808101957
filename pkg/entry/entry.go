// Package entry describes the independent compilation units of an extension:
// the background worker, UI pages and content scripts.
package entry

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Background Kind = iota
	Page
	ContentScript
)

func (k Kind) String() string {
	switch k {
	case Background:
		return "background"
	case Page:
		return "page"
	case ContentScript:
		return "contentscript"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entry is a source file compiled into its own bundle. LogicalName is the key
// every later stage (planner, linker, manifest) refers to it by.
type Entry struct {
	LogicalName string
	SourcePath  string
	Kind        Kind
}

func (e Entry) String() string {
	return e.Kind.String() + ":" + e.LogicalName
}

// ScriptExtensions is the priority order used when stripping an extension.
var ScriptExtensions = []string{".tsx", ".jsx", ".ts", ".js"}

func IsScript(name string) bool {
	for _, ext := range ScriptExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ScriptName strips script extensions, testing them in ScriptExtensions order,
// until none is left. Applying it to its own result is a no-op.
func ScriptName(name string) string {
	for {
		stripped := false
		for _, ext := range ScriptExtensions {
			if strings.HasSuffix(name, ext) && len(name) > len(ext) {
				name = strings.TrimSuffix(name, ext)
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}
