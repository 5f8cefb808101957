// Package manifest derives manifest.json from package metadata and the
// planned output paths.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/emit"
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/plan"
)

var ErrMetadata = errors.New("manifest: package name and version are required")

type Background struct {
	ServiceWorker string   `json:"service_worker,omitempty"`
	Scripts       []string `json:"scripts,omitempty"`
}

type Action struct {
	DefaultIcon  map[string]string `json:"default_icon,omitempty"`
	DefaultTitle string            `json:"default_title,omitempty"`
	DefaultPopup string            `json:"default_popup,omitempty"`
}

type OptionsUI struct {
	Page      string `json:"page"`
	OpenInTab bool   `json:"open_in_tab"`
}

type ContentScript struct {
	Matches []string `json:"matches"`
	JS      []string `json:"js"`
}

// Resource is a manifest v3 web_accessible_resources entry.
type Resource struct {
	Resources     []string `json:"resources"`
	Matches       []string `json:"matches"`
	UseDynamicURL bool     `json:"use_dynamic_url"`
}

// Descriptor covers both manifest versions; fields that do not apply to the
// selected version are left empty.
type Descriptor struct {
	Name                   string            `json:"name"`
	Description            string            `json:"description,omitempty"`
	Version                string            `json:"version"`
	Author                 string            `json:"author,omitempty"`
	ManifestVersion        int               `json:"manifest_version"`
	Background             Background        `json:"background"`
	Icons                  map[string]string `json:"icons,omitempty"`
	Action                 *Action           `json:"action,omitempty"`
	BrowserAction          *Action           `json:"browser_action,omitempty"`
	OptionsUI              *OptionsUI        `json:"options_ui,omitempty"`
	Permissions            []string          `json:"permissions,omitempty"`
	HostPermissions        []string          `json:"host_permissions,omitempty"`
	ContentScripts         []ContentScript   `json:"content_scripts,omitempty"`
	WebAccessibleResources any               `json:"web_accessible_resources,omitempty"`
}

type Input struct {
	Metadata Metadata
	Variant  config.Variant
	Settings config.Manifest
	Plan     *plan.Plan
	Files    emit.FilesFunc
}

// Synthesize builds the descriptor. It only reads paths from the plan and
// the entrypoint files.
func Synthesize(in Input) (*Descriptor, error) {
	if in.Metadata.Name == "" || in.Metadata.Version == "" {
		return nil, ErrMetadata
	}
	modern := in.Variant == config.Modern
	d := &Descriptor{
		Name:        in.Metadata.Name,
		Description: in.Metadata.Description,
		Version:     in.Metadata.Version,
		Author:      in.Metadata.Author,
		Icons:       in.Settings.Icons,
	}

	// Extension pages reference files by absolute path in v3.
	ref := func(p string) string { return p }
	if modern {
		ref = func(p string) string { return "/" + p }
	}

	bg, ok := in.Plan.Output("background")
	if !ok {
		return nil, fmt.Errorf("manifest: no background entry planned")
	}
	if modern {
		d.ManifestVersion = 3
		d.Background.ServiceWorker = bg
	} else {
		d.ManifestVersion = 2
		files, err := in.Files("background")
		if err != nil {
			return nil, err
		}
		d.Background.Scripts = files
	}

	action, err := buildAction(in, ref)
	if err != nil {
		return nil, err
	}
	if modern {
		d.Action = action
	} else {
		d.BrowserAction = action
	}

	options, err := pagePath(in, in.Settings.OptionsPage, "options")
	if err != nil {
		return nil, err
	}
	if options != "" {
		d.OptionsUI = &OptionsUI{Page: ref(options), OpenInTab: true}
	}

	if modern {
		d.Permissions = in.Settings.Permissions
		d.HostPermissions = in.Settings.HostPermissions
	} else {
		d.Permissions = append(append([]string{}, in.Settings.Permissions...), in.Settings.HostPermissions...)
	}

	for _, name := range in.Plan.Names(entry.ContentScript) {
		files, err := in.Files(name)
		if err != nil {
			return nil, err
		}
		js := make([]string, 0, len(files))
		for _, f := range files {
			js = append(js, ref(f))
		}
		matches := in.Settings.ContentScriptMatches[name]
		if len(matches) == 0 {
			matches = in.Settings.Matches
		}
		d.ContentScripts = append(d.ContentScripts, ContentScript{Matches: matches, JS: js})
	}

	roots := in.Plan.Roots()
	if modern {
		var resources []Resource
		for _, root := range []string{roots.Assets, roots.Chunks} {
			resources = append(resources, Resource{
				Resources:     []string{"/" + path.Join(root, "*")},
				Matches:       []string{"<all_urls>"},
				UseDynamicURL: true,
			})
		}
		d.WebAccessibleResources = resources
	} else {
		d.WebAccessibleResources = []string{path.Join(roots.Assets, "*"), path.Join(roots.Chunks, "*")}
	}
	return d, nil
}

func buildAction(in Input, ref func(string) string) (*Action, error) {
	popup, err := pagePath(in, in.Settings.PopupPage, "popup")
	if err != nil {
		return nil, err
	}
	title := in.Settings.Title
	if title == "" {
		title = in.Metadata.Name
	}
	a := &Action{DefaultIcon: in.Settings.ActionIcons, DefaultTitle: title}
	if popup != "" {
		a.DefaultPopup = ref(popup)
	}
	return a, nil
}

// pagePath returns the HTML path of the configured page. Without a
// configured page, a page named fallback is used when it exists.
func pagePath(in Input, configured, fallback string) (string, error) {
	name := configured
	if name == "" {
		name = fallback
	}
	p, ok := in.Plan.HTMLPath(name)
	if !ok {
		if configured != "" {
			return "", fmt.Errorf("manifest: %q is not a page (pages: %v)", configured, in.Plan.Names(entry.Page))
		}
		return "", nil
	}
	return p, nil
}

// JSON serializes the descriptor with 4-space indentation.
func (d *Descriptor) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Producer generates manifest.json once the entrypoint files are known.
func Producer(meta Metadata, cfg config.Config, p *plan.Plan) emit.Producer {
	return func(_ context.Context, files emit.FilesFunc) (string, error) {
		d, err := Synthesize(Input{
			Metadata: meta,
			Variant:  cfg.Variant(),
			Settings: cfg.Manifest,
			Plan:     p,
			Files:    files,
		})
		if err != nil {
			return "", err
		}
		data, err := d.JSON()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
