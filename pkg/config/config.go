// Package config holds the build configuration. A Config is built once at
// the start of a build and passed by value to every stage; nothing in the
// build mutates it afterwards.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

type Browser string

const (
	Chrome  Browser = "chrome"
	Firefox Browser = "firefox"
)

// Variant selects planning and manifest rules.
type Variant int

const (
	// Modern is manifest v3 with a service worker background.
	Modern Variant = iota
	// Legacy is manifest v2 with a background page and declared common bundles.
	Legacy
)

func (v Variant) String() string {
	if v == Legacy {
		return "legacy"
	}
	return "modern"
}

func (b Browser) Variant() Variant {
	if b == Firefox {
		return Legacy
	}
	return Modern
}

var ErrInvalid = errors.New("config: invalid configuration")

// Src lists source locations relative to Config.Root.
type Src struct {
	Base           string `yaml:"base"`
	Background     string `yaml:"background"`
	ContentScripts string `yaml:"contentscripts"`
	Pages          string `yaml:"pages"`
	Assets         string `yaml:"assets"`
	Utils          string `yaml:"utils"`
	Components     string `yaml:"components"`
	// PageTemplate is optional; the embedded default template is used when
	// it is empty.
	PageTemplate string `yaml:"page_template"`
	Package      string `yaml:"package"`
}

// Dist lists output locations. Base is relative to Config.Root, the rest are
// relative to Base and use forward slashes.
type Dist struct {
	Base           string `yaml:"base"`
	Background     string `yaml:"background"`
	ContentScripts string `yaml:"contentscripts"`
	Pages          string `yaml:"pages"`
	Libs           string `yaml:"libs"`
	Assets         string `yaml:"assets"`
	Chunks         string `yaml:"chunks"`
	Manifest       string `yaml:"manifest"`
}

// Group declares a common bundle for the legacy variant. Patterns are
// doublestar globs matched against module paths such as
// "node_modules/react/index.js".
type Group struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

type Manifest struct {
	Title           string            `yaml:"title"`
	Icons           map[string]string `yaml:"icons"`
	ActionIcons     map[string]string `yaml:"action_icons"`
	PopupPage       string            `yaml:"popup_page"`
	OptionsPage     string            `yaml:"options_page"`
	Permissions     []string          `yaml:"permissions"`
	HostPermissions []string          `yaml:"host_permissions"`
	// Matches applies to every content script without its own entry in
	// ContentScriptMatches.
	Matches              []string            `yaml:"matches"`
	ContentScriptMatches map[string][]string `yaml:"content_script_matches"`
}

type Config struct {
	Root    string
	Mode    Mode
	Browser Browser
	Watch   bool

	Src  Src
	Dist Dist

	PublicPath       string
	ChunkLoadTimeout time.Duration
	Concurrency      int
	CacheSize        int

	// Groups is the declared common bundle table, evaluated in order. Only
	// the legacy variant uses it.
	Groups []Group
	// MinSharedEntries is the number of entries that must use a module
	// before the modern variant moves it into a shared chunk. Zero disables
	// sharing.
	MinSharedEntries int

	Manifest Manifest
}

// Default mirrors the conventional source layout: src/background.ts,
// src/pages, src/contentscripts and src/assets, built into dist/<browser>.
func Default(root string) Config {
	return Config{
		Root:    root,
		Mode:    Development,
		Browser: Chrome,
		Src: Src{
			Base:           "src",
			Background:     "src/background.ts",
			ContentScripts: "src/contentscripts",
			Pages:          "src/pages",
			Assets:         "src/assets",
			Utils:          "src/utils",
			Components:     "src/components",
			Package:        "package.json",
		},
		Dist: Dist{
			Base:           "dist",
			Background:     "background.js",
			ContentScripts: "contentscripts",
			Pages:          "pages",
			Libs:           "libs",
			Assets:         "assets",
			Chunks:         "chunks",
			Manifest:       "manifest.json",
		},
		PublicPath:       "/",
		ChunkLoadTimeout: 5 * time.Second,
		Concurrency:      10,
		CacheSize:        4096,
		Groups: []Group{
			{Name: "react", Patterns: []string{
				"node_modules/react/**",
				"node_modules/react-dom/**",
				"node_modules/scheduler/**",
			}},
			{Name: "vendors", Patterns: []string{"node_modules/**"}},
		},
		MinSharedEntries: 2,
		Manifest: Manifest{
			Permissions: []string{"storage"},
			Matches:     []string{"<all_urls>"},
		},
	}
}

func (c Config) Variant() Variant {
	return c.Browser.Variant()
}

// Abs joins a root-relative path onto Root.
func (c Config) Abs(rel string) string {
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// OutDir is the directory the build writes to: <dist base>/<browser>.
func (c Config) OutDir() string {
	return filepath.Join(c.Abs(c.Dist.Base), string(c.Browser))
}

// Aliases maps import prefixes to root-relative directories.
func (c Config) Aliases() map[string]string {
	return map[string]string{
		"@utils":      c.Src.Utils,
		"@components": c.Src.Components,
		"@assets":     c.Src.Assets,
	}
}

// Defines are the compile-time constants substituted in every module.
func (c Config) Defines() map[string]string {
	return map[string]string{
		"X_MODE":    fmt.Sprintf("%q", string(c.Mode)),
		"X_BROWSER": fmt.Sprintf("%q", string(c.Browser)),
	}
}

// ActiveGroups returns the common bundle table for the configured variant.
func (c Config) ActiveGroups() []Group {
	if c.Variant() != Legacy {
		return nil
	}
	return c.Groups
}

// URL returns the public URL of an output path.
func (c Config) URL(out string) string {
	return strings.TrimSuffix(c.PublicPath, "/") + "/" + strings.TrimPrefix(out, "/")
}

func (c Config) Validate() error {
	switch c.Mode {
	case Development, Production:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}
	switch c.Browser {
	case Chrome, Firefox:
	default:
		return fmt.Errorf("%w: unknown browser %q", ErrInvalid, c.Browser)
	}
	if c.ChunkLoadTimeout < time.Millisecond {
		return fmt.Errorf("%w: chunk load timeout must be at least 1ms, got %v", ErrInvalid, c.ChunkLoadTimeout)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Concurrency)
	}
	seen := map[string]bool{}
	for _, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("%w: common group without a name", ErrInvalid)
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: common group %q declared twice", ErrInvalid, g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}
