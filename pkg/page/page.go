// Package page renders the HTML wrapper of each extension page.
package page

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/coldog/extbld/pkg/emit"
)

//go:embed template.html
var DefaultTemplate string

// LoadTemplate reads the page template at path, or returns the embedded
// default when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("page: template: %w", err)
	}
	return string(data), nil
}

// Render replaces the first occurrence of each [[key]] with its value,
// verbatim. Keys are applied in sorted order.
func Render(tmpl string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tmpl = strings.Replace(tmpl, "[["+k+"]]", values[k], 1)
	}
	return tmpl
}

// ScriptTags renders one async script tag per URL, in order.
func ScriptTags(urls []string) string {
	tags := make([]string, 0, len(urls))
	for _, u := range urls {
		tags = append(tags, fmt.Sprintf(`<script src="%s" async></script>`, u))
	}
	return strings.Join(tags, "\n")
}

// Producer generates the HTML of the page entry name. url maps an output path
// to its public URL.
func Producer(tmpl, name, title string, url func(string) string) emit.Producer {
	return func(_ context.Context, files emit.FilesFunc) (string, error) {
		paths, err := files(name)
		if err != nil {
			return "", err
		}
		urls := make([]string, 0, len(paths))
		for _, p := range paths {
			urls = append(urls, url(p))
		}
		return Render(tmpl, map[string]string{
			"scripts": ScriptTags(urls),
			"title":   html.EscapeString(title),
		}), nil
	}
}
