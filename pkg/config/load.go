package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the root when no config file is given.
const DefaultFile = "extbld.yaml"

type file struct {
	Mode             Mode      `yaml:"mode"`
	Browser          Browser   `yaml:"browser"`
	PublicPath       string    `yaml:"public_path"`
	ChunkLoadTimeout string    `yaml:"chunk_load_timeout"`
	Concurrency      int       `yaml:"concurrency"`
	CacheSize        int       `yaml:"cache_size"`
	Src              *Src      `yaml:"src"`
	Dist             *Dist     `yaml:"dist"`
	Groups           []Group   `yaml:"groups"`
	MinSharedEntries *int      `yaml:"min_shared_entries"`
	Manifest         *Manifest `yaml:"manifest"`
}

// Option overrides a loaded value, typically from a command line flag.
type Option func(*Config)

func WithMode(m Mode) Option       { return func(c *Config) { c.Mode = m } }
func WithBrowser(b Browser) Option { return func(c *Config) { c.Browser = b } }
func WithWatch(w bool) Option      { return func(c *Config) { c.Watch = w } }

// Load builds a Config for root. Sources are applied in order: defaults, the
// YAML file (configPath, or extbld.yaml in root when present), the .env file
// in root, EXTBLD_* environment variables, then opts.
func Load(root, configPath string, opts ...Option) (Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Config{}, err
	}
	c := Default(abs)

	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join(abs, DefaultFile)
	}
	if err := c.applyFile(configPath); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		log.Printf("config: loaded %s", configPath)
	}

	_ = godotenv.Load(filepath.Join(abs, ".env"))
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}

	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyFile(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", p, err)
	}

	if f.Mode != "" {
		c.Mode = f.Mode
	}
	if f.Browser != "" {
		c.Browser = f.Browser
	}
	if f.PublicPath != "" {
		c.PublicPath = f.PublicPath
	}
	if f.ChunkLoadTimeout != "" {
		d, err := parseDuration(f.ChunkLoadTimeout)
		if err != nil {
			return fmt.Errorf("config: chunk_load_timeout: %w", err)
		}
		c.ChunkLoadTimeout = d
	}
	if f.Concurrency != 0 {
		c.Concurrency = f.Concurrency
	}
	if f.CacheSize != 0 {
		c.CacheSize = f.CacheSize
	}
	if f.Src != nil {
		mergeStrings(&c.Src.Base, f.Src.Base)
		mergeStrings(&c.Src.Background, f.Src.Background)
		mergeStrings(&c.Src.ContentScripts, f.Src.ContentScripts)
		mergeStrings(&c.Src.Pages, f.Src.Pages)
		mergeStrings(&c.Src.Assets, f.Src.Assets)
		mergeStrings(&c.Src.Utils, f.Src.Utils)
		mergeStrings(&c.Src.Components, f.Src.Components)
		mergeStrings(&c.Src.PageTemplate, f.Src.PageTemplate)
		mergeStrings(&c.Src.Package, f.Src.Package)
	}
	if f.Dist != nil {
		mergeStrings(&c.Dist.Base, f.Dist.Base)
		mergeStrings(&c.Dist.Background, f.Dist.Background)
		mergeStrings(&c.Dist.ContentScripts, f.Dist.ContentScripts)
		mergeStrings(&c.Dist.Pages, f.Dist.Pages)
		mergeStrings(&c.Dist.Libs, f.Dist.Libs)
		mergeStrings(&c.Dist.Assets, f.Dist.Assets)
		mergeStrings(&c.Dist.Chunks, f.Dist.Chunks)
		mergeStrings(&c.Dist.Manifest, f.Dist.Manifest)
	}
	if f.Groups != nil {
		c.Groups = f.Groups
	}
	if f.MinSharedEntries != nil {
		c.MinSharedEntries = *f.MinSharedEntries
	}
	if f.Manifest != nil {
		c.Manifest.merge(*f.Manifest)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("EXTBLD_MODE")); v != "" {
		c.Mode = Mode(v)
	}
	if v := strings.TrimSpace(os.Getenv("EXTBLD_BROWSER")); v != "" {
		c.Browser = Browser(v)
	}
	if v := strings.TrimSpace(os.Getenv("EXTBLD_CHUNK_LOAD_TIMEOUT")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: EXTBLD_CHUNK_LOAD_TIMEOUT: %w", err)
		}
		c.ChunkLoadTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("EXTBLD_CONCURRENCY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: EXTBLD_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// parseDuration accepts Go durations ("5s") and bare milliseconds ("5000").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// merge overlays the fields set in o. A list given as [] clears the default.
func (m *Manifest) merge(o Manifest) {
	mergeStrings(&m.Title, o.Title)
	mergeStrings(&m.PopupPage, o.PopupPage)
	mergeStrings(&m.OptionsPage, o.OptionsPage)
	if o.Icons != nil {
		m.Icons = o.Icons
	}
	if o.ActionIcons != nil {
		m.ActionIcons = o.ActionIcons
	}
	if o.Permissions != nil {
		m.Permissions = o.Permissions
	}
	if o.HostPermissions != nil {
		m.HostPermissions = o.HostPermissions
	}
	if o.Matches != nil {
		m.Matches = o.Matches
	}
	if o.ContentScriptMatches != nil {
		m.ContentScriptMatches = o.ContentScriptMatches
	}
}

func mergeStrings(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
