package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirPrefix is the conventional prefix for published plugin directories.
const DirPrefix = "folio-"

// Locator resolves plugin names to directories.
type Locator struct {
	// Search paths (checked in order)
	paths []string
}

// PluginInfo contains discovery information about a plugin.
type PluginInfo struct {
	Name string
	Path string
	// HasManifest is false for directories without a package.json.
	HasManifest bool
}

// NewLocator creates a locator over paths. Empty entries are dropped.
func NewLocator(paths ...string) *Locator {
	l := &Locator{}
	for _, p := range paths {
		if p != "" {
			l.paths = append(l.paths, p)
		}
	}
	return l
}

// DefaultPluginPaths returns the default plugin search paths under root.
func DefaultPluginPaths(root string) []string {
	return []string{
		filepath.Join(root, "plugins"),
		filepath.Join(root, "node_modules"),
	}
}

// Paths returns the configured search paths.
func (l *Locator) Paths() []string {
	return append([]string(nil), l.paths...)
}

// AddPath adds a search path.
func (l *Locator) AddPath(path string) {
	l.paths = append(l.paths, path)
}

// Find returns the directory for name. Candidates are <path>/<name> then
// <path>/folio-<name> for each path; the first holding a package.json
// wins. Without a match the first candidate is returned so that Prepare
// reports the missing manifest.
func (l *Locator) Find(name string) (string, error) {
	if len(l.paths) == 0 {
		return "", &Error{Kind: ErrPluginNotFound, Plugin: name}
	}

	for _, base := range l.paths {
		for _, dir := range candidates(base, name) {
			if fileExists(filepath.Join(dir, ManifestFile)) {
				return dir, nil
			}
		}
	}
	return filepath.Join(l.paths[0], name), nil
}

func candidates(base, name string) []string {
	if strings.HasPrefix(name, DirPrefix) {
		return []string{filepath.Join(base, name)}
	}
	return []string{
		filepath.Join(base, name),
		filepath.Join(base, DirPrefix+name),
	}
}

// Discover finds all plugin directories in the search paths, sorted by
// name. The first path holding a name wins.
func (l *Locator) Discover() ([]*PluginInfo, error) {
	discovered := make(map[string]*PluginInfo)

	for _, base := range l.paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(base, entry.Name())
			hasManifest := fileExists(filepath.Join(dir, ManifestFile))
			if !hasManifest && !strings.HasPrefix(entry.Name(), DirPrefix) {
				continue
			}

			name := strings.TrimPrefix(entry.Name(), DirPrefix)
			if _, exists := discovered[name]; exists {
				continue
			}
			discovered[name] = &PluginInfo{Name: name, Path: dir, HasManifest: hasManifest}
		}
	}

	plugins := make([]*PluginInfo, 0, len(discovered))
	for _, info := range discovered {
		plugins = append(plugins, info)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})
	return plugins, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
