package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/emit"
	"github.com/coldog/extbld/pkg/entry"
	"github.com/coldog/extbld/pkg/plan"
)

var meta = Metadata{Name: "ext", Version: "1.2.3", Description: "d", Author: "me"}

func entries() []entry.Entry {
	return []entry.Entry{
		{LogicalName: "background", SourcePath: "src/background.ts", Kind: entry.Background},
		{LogicalName: "popup", SourcePath: "src/pages/popup.tsx", Kind: entry.Page},
		{LogicalName: "options", SourcePath: "src/pages/options.tsx", Kind: entry.Page},
		{LogicalName: "inject", SourcePath: "src/contentscripts/inject.tsx", Kind: entry.ContentScript},
	}
}

func setup(t *testing.T, browser config.Browser) (config.Config, *plan.Plan) {
	t.Helper()
	cfg := config.Default("/proj")
	cfg.Browser = browser
	cfg.Manifest.Icons = map[string]string{"16": "assets/images/icon16.png"}
	cfg.Manifest.HostPermissions = []string{"*://*.example.com/*"}
	cfg.Manifest.ContentScriptMatches = map[string][]string{"inject": {"*://*.example.com/*"}}
	p, err := plan.New(cfg, entries())
	require.NoError(t, err)
	return cfg, p
}

func TestSynthesizeChrome(t *testing.T) {
	cfg, p := setup(t, config.Chrome)
	eps := emit.Entrypoints{
		"background": {"background.js"},
		"popup":      {"chunks/abc.js", "pages/popup.js"},
		"options":    {"pages/options.js"},
		"inject":     {"contentscripts/inject.js"},
	}

	out, err := Producer(meta, cfg, p)(context.Background(), eps.Files)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{\n    \"name\": \"ext\",\n"), "4-space indentation")
	assert.JSONEq(t, `{
		"name": "ext",
		"description": "d",
		"version": "1.2.3",
		"author": "me",
		"manifest_version": 3,
		"background": {"service_worker": "background.js"},
		"icons": {"16": "assets/images/icon16.png"},
		"action": {"default_title": "ext", "default_popup": "/pages/popup.html"},
		"options_ui": {"page": "/pages/options.html", "open_in_tab": true},
		"permissions": ["storage"],
		"host_permissions": ["*://*.example.com/*"],
		"content_scripts": [
			{"matches": ["*://*.example.com/*"], "js": ["/contentscripts/inject.js"]}
		],
		"web_accessible_resources": [
			{"resources": ["/assets/*"], "matches": ["<all_urls>"], "use_dynamic_url": true},
			{"resources": ["/chunks/*"], "matches": ["<all_urls>"], "use_dynamic_url": true}
		]
	}`, out)
}

func TestSynthesizeFirefox(t *testing.T) {
	cfg, p := setup(t, config.Firefox)
	eps := emit.Entrypoints{
		"background": {"libs/react.js", "background.js"},
		"popup":      {"libs/react.js", "pages/popup.js"},
		"options":    {"pages/options.js"},
		"inject":     {"contentscripts/inject.js"},
	}

	d, err := Synthesize(Input{Metadata: meta, Variant: cfg.Variant(), Settings: cfg.Manifest, Plan: p, Files: eps.Files})
	require.NoError(t, err)
	assert.Equal(t, 2, d.ManifestVersion)
	assert.Empty(t, d.Background.ServiceWorker)
	assert.Equal(t, []string{"libs/react.js", "background.js"}, d.Background.Scripts)
	assert.Nil(t, d.Action)
	require.NotNil(t, d.BrowserAction)
	assert.Equal(t, "pages/popup.html", d.BrowserAction.DefaultPopup)
	assert.Equal(t, []string{"storage", "*://*.example.com/*"}, d.Permissions)
	assert.Empty(t, d.HostPermissions)
	assert.Equal(t, []string{"assets/*", "chunks/*"}, d.WebAccessibleResources)
	assert.Equal(t, []ContentScript{{Matches: []string{"*://*.example.com/*"}, JS: []string{"contentscripts/inject.js"}}}, d.ContentScripts)
}

func TestSynthesizeDefaultMatches(t *testing.T) {
	cfg, p := setup(t, config.Chrome)
	cfg.Manifest.ContentScriptMatches = nil
	eps := emit.Entrypoints{"background": {"background.js"}, "inject": {"contentscripts/inject.js"}}

	d, err := Synthesize(Input{Metadata: meta, Variant: cfg.Variant(), Settings: cfg.Manifest, Plan: p, Files: eps.Files})
	require.NoError(t, err)
	require.Len(t, d.ContentScripts, 1)
	assert.Equal(t, []string{"<all_urls>"}, d.ContentScripts[0].Matches)
}

func TestSynthesizeErrors(t *testing.T) {
	cfg, p := setup(t, config.Chrome)
	eps := emit.Entrypoints{"background": {"background.js"}}

	_, err := Synthesize(Input{Metadata: Metadata{Name: "x"}, Variant: cfg.Variant(), Plan: p, Files: eps.Files})
	assert.ErrorIs(t, err, ErrMetadata)

	_, err = Synthesize(Input{Metadata: meta, Variant: cfg.Variant(), Settings: cfg.Manifest, Plan: p, Files: eps.Files})
	assert.EqualError(t, err, "unknown entrypoint: inject. Available entrypoints: background")

	settings := cfg.Manifest
	settings.PopupPage = "inject"
	_, err = Synthesize(Input{Metadata: meta, Variant: cfg.Variant(), Settings: settings, Plan: p, Files: eps.Files})
	assert.ErrorContains(t, err, `"inject" is not a page`)
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		json   string
		author string
	}{
		{`{"name": "a", "version": "1.0.0", "author": "Jane"}`, "Jane"},
		{`{"name": "a", "version": "1.0.0", "author": {"name": "Jane", "email": "j@x"}}`, "Jane"},
		{`{"name": "a", "version": "1.0.0"}`, ""},
	}
	for i, c := range cases {
		path := filepath.Join(dir, "package.json")
		require.NoError(t, os.WriteFile(path, []byte(c.json), 0o644))
		m, err := LoadMetadata(path)
		require.NoError(t, err, i)
		assert.Equal(t, "a", m.Name)
		assert.Equal(t, "1.0.0", m.Version)
		assert.Equal(t, c.author, m.Author, i)
	}

	_, err := LoadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"author": 42}`), 0o644))
	_, err = LoadMetadata(path)
	assert.Error(t, err)
}
