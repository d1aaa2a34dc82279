package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/folio/internal/config/layer"
	"github.com/dshills/folio/internal/config/loader"
)

// Default values for site configuration.
const (
	DefaultSiteName     = "folio"
	DefaultListen       = ":8080"
	DefaultNamespace    = "folio"
	DefaultStaticPrefix = "/!/folio/plugin"
	DefaultMaxParallel  = 4
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "auto"
	DefaultEnvPrefix    = "FOLIO_"
)

// SiteFileNames lists the site configuration files searched, in order,
// when no explicit path is given.
var SiteFileNames = []string{"folio.toml", "folio.yaml", "folio.yml"}

// Config is the typed site configuration.
type Config struct {
	Site          SiteConfig                `yaml:"site"`
	Plugins       PluginsConfig             `yaml:"plugins"`
	PluginConfigs map[string]map[string]any `yaml:"pluginConfigs"`
	Log           LogConfig                 `yaml:"log"`

	// Path is the site file the configuration was read from, if any.
	Path string `yaml:"-"`

	layers *layer.Stack
}

// SiteConfig holds site identity and the listen address.
type SiteConfig struct {
	Name   string `yaml:"name"`
	Listen string `yaml:"listen"`
}

// PluginsConfig controls plugin discovery and initialization.
type PluginsConfig struct {
	// Paths are directories searched for plugins, relative to the site root.
	Paths []string `yaml:"paths"`
	// Enabled lists plugin names in initialization order.
	Enabled []string `yaml:"enabled"`
	// Namespace is the manifest key holding Folio-specific metadata.
	Namespace string `yaml:"namespace"`
	// StaticPrefix is the URL prefix for per-plugin public directories.
	StaticPrefix string `yaml:"staticPrefix"`
	// InitTimeout bounds a single plugin's initialization. Zero means no limit.
	InitTimeout time.Duration `yaml:"initTimeout"`
	// MaxParallel bounds concurrent plugin initializations.
	MaxParallel int `yaml:"maxParallel"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Option configures loading.
type Option func(*options)

type options struct {
	fs        loader.FileSystem
	envPrefix string
	useEnv    bool
	root      string
}

// WithFileSystem sets the file system used to read the site file.
func WithFileSystem(fs loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithEnv enables or disables environment variable overrides.
func WithEnv(enable bool) Option {
	return func(o *options) {
		o.useEnv = enable
	}
}

// WithRoot sets the directory searched for a site file when no path is given.
func WithRoot(dir string) Option {
	return func(o *options) {
		o.root = dir
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	c, err := decode(defaultsMap())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	c.layers = layer.NewStack(layer.NewLayer("defaults", layer.SourceBuiltin, defaultsMap()))
	return c
}

func defaultsMap() map[string]any {
	return map[string]any{
		"site": map[string]any{
			"name":   DefaultSiteName,
			"listen": DefaultListen,
		},
		"plugins": map[string]any{
			"paths":        []any{"plugins"},
			"enabled":      []any{},
			"namespace":    DefaultNamespace,
			"staticPrefix": DefaultStaticPrefix,
			"initTimeout":  "0s",
			"maxParallel":  DefaultMaxParallel,
		},
		"pluginConfigs": map[string]any{},
		"log": map[string]any{
			"level":  DefaultLogLevel,
			"format": DefaultLogFormat,
		},
	}
}

// Load reads the site configuration. When path is empty the first of
// SiteFileNames found in the root directory is used; a missing site file
// leaves the defaults in place. An explicit path that doesn't exist is an
// error.
func Load(path string, opts ...Option) (*Config, error) {
	o := &options{
		fs:        loader.DefaultFS(),
		envPrefix: DefaultEnvPrefix,
		useEnv:    true,
		root:      ".",
	}
	for _, opt := range opts {
		opt(o)
	}

	stack := layer.NewStack(layer.NewLayer("defaults", layer.SourceBuiltin, defaultsMap()))

	if path == "" {
		candidates := make([]string, len(SiteFileNames))
		for i, name := range SiteFileNames {
			candidates[i] = filepath.Join(o.root, name)
		}
		path = loader.FindFirst(o.fs, candidates...)
	} else if _, err := o.fs.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if path != "" {
		fl, err := loader.ForPath(o.fs, path)
		if err != nil {
			return nil, err
		}
		data, err := fl.Load()
		if err != nil {
			return nil, fmt.Errorf("loading site config: %w", err)
		}
		fileLayer := layer.NewLayer("site", layer.SourceFile, data)
		fileLayer.Path = path
		stack.Add(fileLayer)
	}

	if o.useEnv {
		data, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		if len(data) > 0 {
			stack.Add(layer.NewLayer("env", layer.SourceEnv, data))
		}
	}

	c, err := decode(stack.Merge())
	if err != nil {
		return nil, fmt.Errorf("decoding site config: %w", err)
	}
	c.Path = path
	c.layers = stack

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decode converts a merged configuration map into a Config.
func decode(data map[string]any) (*Config, error) {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.PluginConfigs == nil {
		c.PluginConfigs = make(map[string]map[string]any)
	}
	return &c, nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "console": true, "json": true,
}

// Validate checks the configuration and returns ValidationErrors listing
// every problem found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Site.Listen == "" {
		errs = append(errs, &ValidationError{
			Path: "site.listen", Message: "must not be empty", Value: c.Site.Listen, Code: ErrCodeRequiredMissing,
		})
	}
	if c.Plugins.Namespace == "" {
		errs = append(errs, &ValidationError{
			Path: "plugins.namespace", Message: "must not be empty", Value: c.Plugins.Namespace, Code: ErrCodeRequiredMissing,
		})
	}
	if !strings.HasPrefix(c.Plugins.StaticPrefix, "/") {
		errs = append(errs, &ValidationError{
			Path: "plugins.staticPrefix", Message: "must start with /", Value: c.Plugins.StaticPrefix, Code: ErrCodeInvalidEnum,
		})
	}
	if c.Plugins.MaxParallel < 1 {
		errs = append(errs, &ValidationError{
			Path: "plugins.maxParallel", Message: "must be at least 1", Value: c.Plugins.MaxParallel, Code: ErrCodeOutOfRange,
		})
	}
	if c.Plugins.InitTimeout < 0 {
		errs = append(errs, &ValidationError{
			Path: "plugins.initTimeout", Message: "must not be negative", Value: c.Plugins.InitTimeout, Code: ErrCodeOutOfRange,
		})
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, &ValidationError{
			Path: "log.level", Message: "unknown log level", Value: c.Log.Level, Code: ErrCodeInvalidEnum,
		})
	}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, &ValidationError{
			Path: "log.format", Message: "unknown log format", Value: c.Log.Format, Code: ErrCodeInvalidEnum,
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PluginConfig returns a deep copy of the configuration fragment for the
// named plugin. Returns an empty map when none is configured.
func (c *Config) PluginConfig(name string) map[string]any {
	return layer.Clone(c.PluginConfigs[name])
}

// SetPluginConfig replaces the fragment for the named plugin.
func (c *Config) SetPluginConfig(name string, fragment map[string]any) {
	if c.PluginConfigs == nil {
		c.PluginConfigs = make(map[string]map[string]any)
	}
	c.PluginConfigs[name] = layer.Clone(fragment)
}

// Source reports which layer supplied the value at path.
// Returns "" when no layer defines it.
func (c *Config) Source(path string) string {
	if c.layers == nil {
		return ""
	}
	return c.layers.WhichLayer(path)
}

// PluginSearchPaths returns the plugin paths resolved against dir.
func (c *Config) PluginSearchPaths(dir string) []string {
	out := make([]string, 0, len(c.Plugins.Paths))
	for _, p := range c.Plugins.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		out = append(out, p)
	}
	return out
}
