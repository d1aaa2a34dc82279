package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "package.json"

// DefaultNamespace is the manifest key holding Folio metadata.
const DefaultNamespace = "folio"

// GoScheme prefixes main entries that name compiled-in Go modules.
const GoScheme = "go:"

// Manifest describes a plugin package.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	// Main is the entry module, relative to the plugin directory, or a
	// go: reference. Empty for configuration-only plugins.
	Main string `json:"main,omitempty"`

	// Section is the namespaced Folio section.
	Section Section `json:"section"`

	// Namespace is the key Section was read from.
	Namespace string `json:"namespace"`
}

// Section is the manifest's namespaced sub-object.
type Section struct {
	// Config holds the plugin's default configuration.
	Config map[string]any `json:"config"`
	// Templates lists template files to register.
	Templates []string `json:"templates,omitempty"`
	// Options are theme-style options passed to templates.
	Options map[string]any `json:"options,omitempty"`
	// Assets declares static assets.
	Assets Assets `json:"assets"`
	// ConfigFile names a plugin-local config file overriding the default
	// folio.toml / folio.yaml lookup.
	ConfigFile string `json:"configFile,omitempty"`
	// Raw is the whole section as decoded from JSON.
	Raw map[string]any `json:"-"`
}

// Assets declares a plugin's static assets.
type Assets struct {
	Styles  []string `json:"styles,omitempty"`
	Scripts []string `json:"scripts,omitempty"`
}

// Empty reports whether no assets are declared.
func (a Assets) Empty() bool {
	return len(a.Styles) == 0 && len(a.Scripts) == 0
}

// Manifest validation errors.
var (
	ErrInvalidJSON    = errors.New("manifest: invalid JSON")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a relative path inside the plugin")
	ErrInvalidSection = errors.New("manifest: namespaced section must be an object")
	ErrInvalidConfig  = errors.New("manifest: configFile must be a relative path inside the plugin")
)

// ReadManifest reads and parses the manifest at path. A missing file
// yields an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadManifest(path, namespace string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, namespace)
}

// ParseManifest parses and validates manifest JSON. A missing namespaced
// section is treated as one with an empty config.
func ParseManifest(data []byte, namespace string) (*Manifest, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidJSON)
	}

	m := &Manifest{
		Name:        root.Get("name").String(),
		Version:     root.Get("version").String(),
		Description: root.Get("description").String(),
		Namespace:   namespace,
	}

	if main := root.Get("main"); main.Exists() {
		if main.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s", ErrInvalidMain, main.Raw)
		}
		m.Main = main.String()
	}

	section, err := parseSection(root.Get(namespace))
	if err != nil {
		return nil, err
	}
	m.Section = section

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseSection(res gjson.Result) (Section, error) {
	s := Section{Config: map[string]any{}, Raw: map[string]any{}}
	if !res.Exists() || res.Type == gjson.Null {
		s.Raw["config"] = map[string]any{}
		return s, nil
	}
	if !res.IsObject() {
		return s, ErrInvalidSection
	}

	if raw, ok := res.Value().(map[string]any); ok {
		s.Raw = raw
	}
	if cfg, ok := res.Get("config").Value().(map[string]any); ok {
		s.Config = cfg
	}
	if opts, ok := res.Get("options").Value().(map[string]any); ok {
		s.Options = opts
	}
	s.Templates = stringArray(res.Get("templates"))
	s.Assets = Assets{
		Styles:  stringArray(res.Get("assets.styles")),
		Scripts: stringArray(res.Get("assets.scripts")),
	}
	s.ConfigFile = res.Get("configFile").String()
	return s, nil
}

func stringArray(res gjson.Result) []string {
	if !res.IsArray() {
		if res.Type == gjson.String {
			return []string{res.String()}
		}
		return nil
	}
	var out []string
	for _, v := range res.Array() {
		out = append(out, v.String())
	}
	return out
}

// Validate checks the manifest's version and main entry.
func (m *Manifest) Validate() error {
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
		}
	}
	if m.Main != "" && !strings.HasPrefix(m.Main, GoScheme) {
		if !filepath.IsLocal(filepath.FromSlash(m.Main)) {
			return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
		}
	}
	if m.Section.ConfigFile != "" && !filepath.IsLocal(filepath.FromSlash(m.Section.ConfigFile)) {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, m.Section.ConfigFile)
	}
	return nil
}

// SemVer returns the parsed version, or nil when none is declared.
func (m *Manifest) SemVer() *semver.Version {
	if m.Version == "" {
		return nil
	}
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil
	}
	return v
}

// ResolveMain returns the entry path for main inside dir. go: references
// are returned unchanged; an empty main yields "".
func ResolveMain(dir, main string) string {
	if main == "" {
		return ""
	}
	if strings.HasPrefix(main, GoScheme) {
		return main
	}
	return filepath.Join(dir, filepath.FromSlash(main))
}
